package masking

import (
	"os"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Category classifies why a field is sensitive.
type Category string

const (
	// CategoryAuthentication covers credentials, tokens, and session material.
	CategoryAuthentication Category = "authentication"
	// CategoryPII covers personally identifying information.
	CategoryPII Category = "pii"
	// CategorySecurity covers key material and signatures.
	CategorySecurity Category = "security"
)

// EnvRulesetPath is the environment variable naming the external ruleset
// file. Config takes precedence over the environment.
const EnvRulesetPath = "GOCTRL_MASKING_RULESET"

// Rule maps one field-name pattern to its category. Patterns match field
// names as case-insensitive substrings.
type Rule struct {
	FieldPattern string
	Category     Category
}

func defaultRules() []Rule {
	return []Rule{
		{FieldPattern: "password", Category: CategoryAuthentication},
		{FieldPattern: "passwd", Category: CategoryAuthentication},
		{FieldPattern: "secret", Category: CategoryAuthentication},
		{FieldPattern: "token", Category: CategoryAuthentication},
		{FieldPattern: "authorization", Category: CategoryAuthentication},
		{FieldPattern: "credential", Category: CategoryAuthentication},
		{FieldPattern: "apikey", Category: CategoryAuthentication},
		{FieldPattern: "api_key", Category: CategoryAuthentication},
		{FieldPattern: "cookie", Category: CategoryAuthentication},
		{FieldPattern: "session", Category: CategoryAuthentication},

		{FieldPattern: "email", Category: CategoryPII},
		{FieldPattern: "phone", Category: CategoryPII},
		{FieldPattern: "ssn", Category: CategoryPII},
		{FieldPattern: "birthdate", Category: CategoryPII},
		{FieldPattern: "address", Category: CategoryPII},

		{FieldPattern: "privatekey", Category: CategorySecurity},
		{FieldPattern: "private_key", Category: CategorySecurity},
		{FieldPattern: "signature", Category: CategorySecurity},
		{FieldPattern: "certificate", Category: CategorySecurity},
	}
}

// authHeaderPatterns match header names that are fully redacted regardless
// of content.
var authHeaderPatterns = []string{"authorization", "token", "cookie", "session", "secret"}

// Ruleset is the immutable merged rule collection used by a Masker.
type Ruleset struct {
	rules    []Rule
	patterns []string // lowercased, deduplicated
}

func newRuleset(rules []Rule) *Ruleset {
	seen := make(map[string]struct{}, len(rules))
	rs := &Ruleset{rules: rules}
	for _, r := range rules {
		p := strings.ToLower(r.FieldPattern)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		rs.patterns = append(rs.patterns, p)
	}
	return rs
}

// Matches reports whether field is sensitive under this ruleset.
func (r *Ruleset) Matches(field string) bool {
	f := strings.ToLower(field)
	for _, p := range r.patterns {
		if strings.Contains(f, p) {
			return true
		}
	}
	return false
}

// Rules returns a copy of the merged rules.
func (r *Ruleset) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// LoadRuleset merges the built-in defaults with the JSON document at path.
// An empty path falls back to EnvRulesetPath; a missing or malformed file
// falls back silently to the defaults. The document shape is one array of
// patterns per category:
//
//	{"authentication": ["xApiToken"], "pii": ["taxNumber"], "security": []}
func LoadRuleset(path string) *Ruleset {
	rules := defaultRules()
	if path == "" {
		path = os.Getenv(EnvRulesetPath)
	}
	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), kjson.Parser()); err == nil {
			for _, cat := range []Category{CategoryAuthentication, CategoryPII, CategorySecurity} {
				for _, p := range k.Strings(string(cat)) {
					if p != "" {
						rules = append(rules, Rule{FieldPattern: p, Category: cat})
					}
				}
			}
		}
	}
	return newRuleset(rules)
}
