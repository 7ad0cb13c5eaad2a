package textutil

import (
	"math"
	"testing"
)

// TestCosineSimilarity 测试余弦相似度计算。
func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched length", []float32{1, 0}, []float32{1}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashBytes(t *testing.T) {
	h1 := HashBytes([]byte("hello"))
	h2 := HashBytes([]byte("hello"))
	h3 := HashBytes([]byte("world"))

	if h1 != h2 {
		t.Error("same content should produce same hash")
	}
	if h1 == h3 {
		t.Error("different content should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello", 10); got != "hello" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	if got := TruncateString("hello", 3); got != "hel" {
		t.Errorf("expected 'hel', got %q", got)
	}
	// 多字节字符按 rune 截断
	if got := TruncateString("你好世界", 2); got != "你好" {
		t.Errorf("expected '你好', got %q", got)
	}
}

// TestSplitSentences 测试句子分割。
func TestSplitSentences(t *testing.T) {
	sentences := SplitSentences("First sentence. Second one! Third? Fourth without ending")
	if len(sentences) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "First sentence." {
		t.Errorf("unexpected first sentence: %q", sentences[0])
	}
	if sentences[3] != "Fourth without ending" {
		t.Errorf("unexpected trailing sentence: %q", sentences[3])
	}
}

func TestSplitSentencesChinese(t *testing.T) {
	sentences := SplitSentences("这是第一句。这是第二句！")
	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(sentences), sentences)
	}
}

func TestSplitSentencesEmpty(t *testing.T) {
	if got := SplitSentences("   \n  "); got != nil {
		t.Errorf("expected nil for blank input, got %v", got)
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"choice": 1}`, `{"choice": 1}`, false},
		{"markdown fenced", "```json\n{\"choice\": 1}\n```", `{"choice": 1}`, false},
		{"surrounding prose", `The answer is {"choice": 2, "reason": "needs {detail}"} as shown.`, `{"choice": 2, "reason": "needs {detail}"}`, false},
		{"nested object", `{"a": {"b": 1}}`, `{"a": {"b": 1}}`, false},
		{"no object", "plain text", "", true},
		{"unterminated", `{"choice": `, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractJSONObject() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractJSONObject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("a  b\n\tc"); got != "a b c" {
		t.Errorf("expected 'a b c', got %q", got)
	}
}
