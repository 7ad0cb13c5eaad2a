package biz

import (
	"strings"
	"unicode/utf8"

	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
)

// SplitterConfig 句子分块器配置。
type SplitterConfig struct {
	// ChunkSize 每个分块的最大 Unicode 字符数。
	ChunkSize int
	// ChunkOverlap 相邻分块之间的重叠字符数。
	ChunkOverlap int
	// MinChunkLen 丢弃低于此长度的分块。
	MinChunkLen int
}

// DefaultSplitterConfig 返回默认分块配置。
func DefaultSplitterConfig() *SplitterConfig {
	return &SplitterConfig{
		ChunkSize:    1024,
		ChunkOverlap: 200,
		MinChunkLen:  20,
	}
}

// SentenceSplitter 将文本按句子边界打包成分块。
// 优先保持句子完整，单句超过分块大小时退化为定长切分。
type SentenceSplitter struct {
	config *SplitterConfig
}

// NewSentenceSplitter 创建句子分块器。
func NewSentenceSplitter(config *SplitterConfig) *SentenceSplitter {
	if config == nil {
		config = DefaultSplitterConfig()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1024
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 4
	}
	return &SentenceSplitter{config: config}
}

// Split 将文本分割为句子打包的分块。
func (s *SentenceSplitter) Split(text string) []string {
	sentences := textutil.SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	// 超长句先行切碎，保证单个片段不超过分块大小
	var pieces []string
	for _, sentence := range sentences {
		if utf8.RuneCountInString(sentence) <= s.config.ChunkSize {
			pieces = append(pieces, sentence)
			continue
		}
		runes := []rune(sentence)
		for i := 0; i < len(runes); i += s.config.ChunkSize {
			end := i + s.config.ChunkSize
			if end > len(runes) {
				end = len(runes)
			}
			pieces = append(pieces, string(runes[i:end]))
		}
	}

	var chunks []string
	var current []string
	currentLen := 0
	// hasNew 标记自上次重叠回填后是否追加过新片段
	hasNew := false

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(current, " "))
		if utf8.RuneCountInString(chunk) >= s.config.MinChunkLen {
			chunks = append(chunks, chunk)
		}
		// 保留尾部句子作为下一个分块的重叠部分
		overlap := s.overlapTail(current)
		current = overlap
		currentLen = runeLen(overlap)
		hasNew = false
	}

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if currentLen > 0 && currentLen+pieceLen+1 > s.config.ChunkSize {
			flush()
		}
		current = append(current, piece)
		currentLen += pieceLen + 1
		hasNew = true
	}

	// 只剩重叠残留时不重复输出，否则末尾分块原样收尾
	if hasNew && len(current) > 0 {
		chunk := strings.TrimSpace(strings.Join(current, " "))
		if utf8.RuneCountInString(chunk) >= s.config.MinChunkLen {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

// overlapTail 返回句子列表尾部总长不超过重叠配置的子序列。
func (s *SentenceSplitter) overlapTail(sentences []string) []string {
	if s.config.ChunkOverlap == 0 {
		return nil
	}

	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		l := utf8.RuneCountInString(sentences[i])
		if total+l > s.config.ChunkOverlap {
			break
		}
		total += l
		start = i
	}

	if start == len(sentences) {
		return nil
	}
	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail
}

func runeLen(sentences []string) int {
	total := 0
	for _, s := range sentences {
		total += utf8.RuneCountInString(s) + 1
	}
	return total
}
