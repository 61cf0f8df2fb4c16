package llm

import (
	"encoding/json"
	"strings"

	"spendlens/internal/core"
)

// envelope mirrors the schema root: the record nests under an "expense" key.
type envelope struct {
	Expense *core.PartialExpense `json:"expense"`
}

// CompletePartialJSON closes a truncated JSON object prefix so it can be
// decoded: it terminates an open string, discards a dangling key or
// separator, and closes every open brace and bracket. Returns false when the
// prefix cannot be turned into valid JSON (for example a literal or number
// cut mid-token).
func CompletePartialJSON(prefix string) ([]byte, bool) {
	s := strings.TrimSpace(prefix)
	if s == "" || s[0] != '{' {
		return nil, false
	}

	type frame struct {
		isObject  bool
		expectKey bool
	}
	var stack []frame
	inString := false
	escaped := false
	stringIsKey := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			stringIsKey = len(stack) > 0 && stack[len(stack)-1].isObject && stack[len(stack)-1].expectKey
		case '{':
			stack = append(stack, frame{isObject: true, expectKey: true})
		case '[':
			stack = append(stack, frame{isObject: false})
		case '}', ']':
			if len(stack) == 0 {
				return nil, false
			}
			stack = stack[:len(stack)-1]
		case ':':
			if len(stack) > 0 {
				stack[len(stack)-1].expectKey = false
			}
		case ',':
			if len(stack) > 0 && stack[len(stack)-1].isObject {
				stack[len(stack)-1].expectKey = true
			}
		}
	}

	var b strings.Builder
	if escaped {
		s = s[:len(s)-1] // drop the dangling backslash
	}
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
		if stringIsKey {
			b.WriteString(":null")
		}
	} else {
		trimmed := strings.TrimRight(b.String(), " \t\r\n")
		if strings.HasSuffix(trimmed, ":") {
			b.Reset()
			b.WriteString(trimmed)
			b.WriteString("null")
		} else if strings.HasSuffix(trimmed, ",") {
			b.Reset()
			b.WriteString(strings.TrimSuffix(trimmed, ","))
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].isObject {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}

	out := []byte(b.String())
	if !json.Valid(out) {
		return nil, false
	}
	return out, true
}

// DecodePartial decodes an in-flight content prefix into a provisional
// partial expense. Returns false when the prefix holds nothing usable yet.
func DecodePartial(content string) (core.PartialExpense, bool) {
	completed, ok := CompletePartialJSON(content)
	if !ok {
		return core.PartialExpense{}, false
	}
	var env envelope
	if err := json.Unmarshal(completed, &env); err != nil || env.Expense == nil {
		return core.PartialExpense{}, false
	}
	return *env.Expense, true
}

// ParseFinal strictly decodes the completed content into an Expense and
// validates it against the contract. Any deviation is a contract violation,
// not a valid state.
func ParseFinal(content string) (core.Expense, error) {
	var env envelope
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &env); err != nil {
		return core.Expense{}, err
	}
	if env.Expense == nil {
		return core.Expense{}, core.ErrInvocationFailed
	}
	expense := core.FromPartial(*env.Expense)
	if err := expense.Validate(); err != nil {
		return core.Expense{}, err
	}
	return expense, nil
}
