package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/insight-pdf/internal/pkg/textutil"
	"github.com/kart-io/insight-pdf/pkg/llm"
	"github.com/kart-io/insight-pdf/pkg/utils/json"
)

// selectorPrompt 工具选择提示词模板。要求 LLM 输出严格 JSON。
const selectorPrompt = `Some choices are given below. It is provided in a numbered list (1 to {{num}}),
where each item in the list corresponds to a tool.

{{choices}}

Using only the choices above and not prior knowledge, pick the single choice
that is most relevant to the question: "{{question}}"

Respond with ONLY a JSON object in this exact format:
{"choice": <number>, "reason": "<one short sentence>"}`

// Selection 选择器的决策结果。
type Selection struct {
	// Index 被选中工具的下标（0 基）。
	Index int
	// Reason 选择理由。
	Reason string
	// Fallback 是否因解析失败回退到默认工具。
	Fallback bool
	// TokenUsage 本次选择的 token 消耗，可能为 nil。
	TokenUsage *llm.TokenUsage
}

// Selector 根据问题从候选工具中选出一个。
type Selector interface {
	Select(ctx context.Context, question string, tools []ToolMetadata) (*Selection, error)
}

// LLMSingleSelector 通过一次 LLM 调用选择工具。
// LLM 输出无法解析或选择越界时，回退到默认工具并记录告警。
type LLMSingleSelector struct {
	chatProvider llm.ChatProvider
	defaultIndex int
}

var _ Selector = (*LLMSingleSelector)(nil)

// NewLLMSingleSelector 创建 LLM 单选选择器。
// defaultIndex 是解析失败时回退的工具下标。
func NewLLMSingleSelector(chatProvider llm.ChatProvider, defaultIndex int) *LLMSingleSelector {
	return &LLMSingleSelector{
		chatProvider: chatProvider,
		defaultIndex: defaultIndex,
	}
}

// selectorVerdict LLM 返回的 JSON 结构。
type selectorVerdict struct {
	Choice int    `json:"choice"`
	Reason string `json:"reason"`
}

// Select 让 LLM 在候选工具中做单选。
func (s *LLMSingleSelector) Select(ctx context.Context, question string, tools []ToolMetadata) (*Selection, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("候选工具列表为空")
	}

	prompt := s.buildPrompt(question, tools)

	resp, err := s.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		// LLM 不可用时同样回退到默认工具，保证查询可用
		logger.Warnw("选择器 LLM 调用失败，回退到默认工具",
			"error", err.Error(),
			"default_tool", tools[s.clampDefault(tools)].Name,
		)
		return s.fallback(tools, "selector LLM call failed"), nil
	}

	verdict, parseErr := parseVerdict(resp.Content)
	if parseErr != nil {
		logger.Warnw("选择器输出解析失败，回退到默认工具",
			"error", parseErr.Error(),
			"raw_output", textutil.TruncateString(resp.Content, 200),
		)
		sel := s.fallback(tools, "selector output could not be parsed")
		sel.TokenUsage = resp.TokenUsage
		return sel, nil
	}

	// 提示词中的编号是 1 基的
	index := verdict.Choice - 1
	if index < 0 || index >= len(tools) {
		logger.Warnw("选择器选择越界，回退到默认工具",
			"choice", verdict.Choice,
			"num_tools", len(tools),
		)
		sel := s.fallback(tools, fmt.Sprintf("choice %d out of range", verdict.Choice))
		sel.TokenUsage = resp.TokenUsage
		return sel, nil
	}

	return &Selection{
		Index:      index,
		Reason:     strings.TrimSpace(verdict.Reason),
		TokenUsage: resp.TokenUsage,
	}, nil
}

// buildPrompt 构建带编号工具列表的选择提示词。
func (s *LLMSingleSelector) buildPrompt(question string, tools []ToolMetadata) string {
	var choices strings.Builder
	for i, tool := range tools {
		fmt.Fprintf(&choices, "(%d) %s\n", i+1, tool.Description)
	}

	prompt := strings.ReplaceAll(selectorPrompt, "{{num}}", fmt.Sprintf("%d", len(tools)))
	prompt = strings.ReplaceAll(prompt, "{{choices}}", strings.TrimSpace(choices.String()))
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)
	return prompt
}

// clampDefault 保证默认下标在工具范围内。
func (s *LLMSingleSelector) clampDefault(tools []ToolMetadata) int {
	if s.defaultIndex < 0 || s.defaultIndex >= len(tools) {
		return 0
	}
	return s.defaultIndex
}

// fallback 构造回退决策。
func (s *LLMSingleSelector) fallback(tools []ToolMetadata, reason string) *Selection {
	return &Selection{
		Index:    s.clampDefault(tools),
		Reason:   reason,
		Fallback: true,
	}
}

// parseVerdict 从 LLM 输出中提取并解析 JSON 决策。
func parseVerdict(output string) (*selectorVerdict, error) {
	jsonStr, err := textutil.ExtractJSONObject(output)
	if err != nil {
		return nil, err
	}

	var verdict selectorVerdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		return nil, fmt.Errorf("解析选择器 JSON 失败: %w", err)
	}
	return &verdict, nil
}
