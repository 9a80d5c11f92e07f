// internal/service/verifier/matchers.go
package verifier

import (
	"regexp"
	"strconv"
	"strings"

	"subgate-service/internal/domain/payment"
)

// Matcher recognizes payment amounts in raw source messages.
type Matcher interface {
	Match(msg payment.RawMessage) (payment.Match, bool)
}

// Bank notification formats seen in the VK transfer feed: an incoming SBP
// transfer line and the personal-transfer confirmation.
var (
	sbpIncomingRe = regexp.MustCompile(`Поступление\s+([\d\s]+[.,]\d{2})\s*RUR\s+по\s+СБП`)
	transferRe    = regexp.MustCompile(`Деньги\s+пришли!\s*([\d\s]+[.,]\d{2})\s*₽`)
)

// VkTransferMatcher parses bank-notification messages relayed through a
// VK dialog.
type VkTransferMatcher struct{}

func NewVkTransferMatcher() *VkTransferMatcher { return &VkTransferMatcher{} }

func (m *VkTransferMatcher) Match(msg payment.RawMessage) (payment.Match, bool) {
	for _, re := range []*regexp.Regexp{sbpIncomingRe, transferRe} {
		groups := re.FindStringSubmatch(msg.Text)
		if groups == nil {
			continue
		}
		amount, err := parseAmountMinor(groups[1])
		if err != nil {
			continue
		}
		return payment.Match{
			Source:      msg.Source,
			AmountMinor: amount,
			ReceivedAt:  msg.ReceivedAt,
			Raw:         msg,
		}, true
	}
	return payment.Match{}, false
}

// parseAmountMinor converts a bank-formatted amount like "1 234,56" into
// minor units.
func parseAmountMinor(s string) (int64, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")

	whole, frac, found := strings.Cut(s, ".")
	if !found {
		frac = "00"
	}
	rub, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	kop, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return rub*100 + kop, nil
}
