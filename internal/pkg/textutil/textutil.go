// Package textutil 提供文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashBytes 计算字节内容的 SHA-256 哈希值，用于文档去重。
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// sentenceEndings 匹配中英文句子结束符，保留结束符在句子末尾。
var sentenceEndings = regexp.MustCompile(`([.!?。！？]+[\s"')\]]*|\n{2,})`)

// SplitSentences 将文本分割为句子。句子结束符保留在句子末尾，
// 空白片段会被丢弃。
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceEndings.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[last:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// ExtractJSONObject 从文本中提取第一个 JSON 对象子串。
// LLM 输出经常在 JSON 前后夹带解释文字或 Markdown 代码块标记。
func ExtractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("未找到 JSON 对象")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("JSON 对象不完整")
}

// CollapseWhitespace 将连续空白压缩为单个空格。
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
