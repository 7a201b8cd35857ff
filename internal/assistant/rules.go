package assistant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is the configuration data in front of the generator.
type Rules struct {
	BlockedTerms  []string          `yaml:"blocked_terms"`
	Canned        map[string]string `yaml:"canned"`
	Refusal       string            `yaml:"refusal"`
	Apology       string            `yaml:"apology"`
	EmptyQuestion string            `yaml:"empty_question"`
	SystemPrompt  string            `yaml:"system_prompt"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		BlockedTerms: []string{"جنسي", "جنس", "إباحي", "اباحي", "porn", "sex"},
		Canned: map[string]string{
			"من انت؟":   "أنا مساعد TDH الذكي، هنا لمساعدتك في أسئلة التدريب واللياقة.",
			"من أنت؟":   "أنا مساعد TDH الذكي، هنا لمساعدتك في أسئلة التدريب واللياقة.",
			"ما هو TDH؟": "TDH مجتمع تدريبي يجمع المتدربين والمدربين لمشاركة الخبرات والتقدم.",
		},
		Refusal:       "🚫 لا يمكنني الإجابة على هذا النوع من الأسئلة.",
		Apology:       "⚠️ حدث خطأ أثناء معالجة الطلب. الرجاء المحاولة لاحقًا.",
		EmptyQuestion: "❌ الرجاء كتابة سؤال أولاً.",
		SystemPrompt: "أنت مساعد مجتمع TDH التدريبي. أجب باختصار ووضوح وباللغة التي كُتب بها السؤال. " +
			"تجنب المحتوى غير اللائق وركز على التدريب واللياقة والتعلم.",
	}
}

// LoadRules reads a YAML rules file over the defaults. Keys absent from the file keep their default.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read assistant rules: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return rules, fmt.Errorf("parse assistant rules %s: %w", path, err)
	}

	if override.BlockedTerms != nil {
		rules.BlockedTerms = override.BlockedTerms
	}
	if override.Canned != nil {
		rules.Canned = override.Canned
	}
	if override.Refusal != "" {
		rules.Refusal = override.Refusal
	}
	if override.Apology != "" {
		rules.Apology = override.Apology
	}
	if override.EmptyQuestion != "" {
		rules.EmptyQuestion = override.EmptyQuestion
	}
	if override.SystemPrompt != "" {
		rules.SystemPrompt = override.SystemPrompt
	}
	return rules, nil
}

// compiled is Rules prepared for matching.
type compiled struct {
	Rules
	blocked []string
	canned  map[string]string
}

func compile(r Rules) compiled {
	c := compiled{Rules: r, canned: make(map[string]string, len(r.Canned))}
	for _, term := range r.BlockedTerms {
		if t := strings.ToLower(strings.TrimSpace(term)); t != "" {
			c.blocked = append(c.blocked, t)
		}
	}
	for q, a := range r.Canned {
		c.canned[strings.TrimSpace(q)] = a
	}
	return c
}

func (c compiled) isBlocked(question string) bool {
	lower := strings.ToLower(question)
	for _, term := range c.blocked {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func (c compiled) cannedAnswer(question string) (string, bool) {
	a, ok := c.canned[strings.TrimSpace(question)]
	return a, ok
}
