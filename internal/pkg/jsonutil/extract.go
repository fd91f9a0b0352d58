package jsonutil

import (
	"regexp"
	"strings"
)

const codeFence = "```"

var thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

// StripThinking 去掉推理模型输出中的 <think>...</think> 段落。
// 只有开标签没有闭标签时，丢弃开标签之后的全部内容。
func StripThinking(raw string) string {
	out := thinkBlock.ReplaceAllString(raw, "")
	if idx := strings.Index(strings.ToLower(out), "<think>"); idx != -1 {
		out = out[:idx]
	}
	return strings.TrimSpace(out)
}

// ExtractObject 返回 raw 中的第一个 JSON 对象，优先取 markdown 代码块内的。
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := fenced(raw); ok {
		if obj, ok := balanced(block, '{', '}'); ok {
			return obj, true
		}
	}
	return balanced(raw, '{', '}')
}

func fenced(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

// balanced scans for the first open..close span, honouring JSON string escapes.
func balanced(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[start : i+1]), true
			}
		}
	}
	return "", false
}
