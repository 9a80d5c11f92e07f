package verifier

import (
	"testing"
	"time"

	"subgate-service/internal/domain/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawMsg(text string) payment.RawMessage {
	return payment.RawMessage{
		Source:     SourceVk,
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}
}

func TestVkTransferMatcherSbpIncoming(t *testing.T) {
	m := NewVkTransferMatcher()

	match, ok := m.Match(rawMsg("Поступление 199.03 RUR по СБП от ИВАН И."))
	require.True(t, ok)
	assert.Equal(t, int64(19903), match.AmountMinor)
	assert.Equal(t, SourceVk, match.Source)
}

func TestVkTransferMatcherPersonalTransfer(t *testing.T) {
	m := NewVkTransferMatcher()

	match, ok := m.Match(rawMsg("Деньги пришли! 199,42 ₽ уже на вашей карте"))
	require.True(t, ok)
	assert.Equal(t, int64(19942), match.AmountMinor)
}

func TestVkTransferMatcherThousandsSeparator(t *testing.T) {
	m := NewVkTransferMatcher()

	match, ok := m.Match(rawMsg("Поступление 1 199.05 RUR по СБП"))
	require.True(t, ok)
	assert.Equal(t, int64(119905), match.AmountMinor)
}

func TestVkTransferMatcherIgnoresOtherMessages(t *testing.T) {
	m := NewVkTransferMatcher()

	for _, text := range []string{
		"Привет, как дела?",
		"Списание 199.03 RUR",
		"Поступление RUR по СБП",
		"",
	} {
		_, ok := m.Match(rawMsg(text))
		assert.False(t, ok, "must not match %q", text)
	}
}

func TestParseAmountMinor(t *testing.T) {
	cases := map[string]int64{
		"199.03":   19903,
		"199,03":   19903,
		"1 199,05": 119905,
		"10.00":    1000,
	}
	for in, want := range cases {
		got, err := parseAmountMinor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseAmountMinor("abc")
	assert.Error(t, err)
}
