package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

// Filters evaluates filter rules against inbound messages. Rules are
// combined with OR: any single match accepts the message, and a session
// with no rules accepts everything.
type Filters struct {
	logger *logger.Logger
}

func NewFilters(logger *logger.Logger) *Filters {
	return &Filters{
		logger: logger,
	}
}

// Evaluate reports whether msg passes the rule set. A rule that cannot
// be evaluated, such as an invalid regex pattern, never matches; the
// remaining rules are still tried.
func (f *Filters) Evaluate(rules []model.FilterRule, msg model.InboundMessage) bool {
	if len(rules) == 0 {
		return true
	}

	for _, rule := range rules {
		if f.matches(rule, msg) {
			return true
		}
	}
	return false
}

func (f *Filters) matches(rule model.FilterRule, msg model.InboundMessage) bool {
	switch rule.Kind {
	case model.FilterKindKeyword:
		return strings.Contains(strings.ToLower(msg.Text), strings.ToLower(rule.Value))
	case model.FilterKindRegex:
		re, err := regexp.Compile("(?i)" + rule.Value)
		if err != nil {
			f.logger.Error("skipping invalid regex rule",
				"session", rule.SessionName, "pattern", rule.Value, "error", err)
			return false
		}
		return re.MatchString(msg.Text)
	case model.FilterKindSender:
		return rule.Value == strconv.FormatInt(msg.SenderID, 10)
	default:
		f.logger.Error("skipping rule of unknown kind",
			"session", rule.SessionName, "kind", rule.Kind)
		return false
	}
}
