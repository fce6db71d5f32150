package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Key joins the parts into a cache key. Empty parts are kept so that
// ("a", "", "b") and ("a", "b") never collide.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}

// Fingerprint summarizes a transaction set independently of its order:
// the count, the sum of amounts and a hash prefix over every transaction.
func Fingerprint(txs []core.Transaction) string {
	lines := make([]string, len(txs))
	sum := decimal.Zero
	for i, tx := range txs {
		sum = sum.Add(tx.Amount)
		lines[i] = strings.Join([]string{tx.ID, tx.Date.String(), string(tx.Type), tx.Amount.String()}, "|")
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("n%d:%s:%s", len(txs), sum.String(), hex.EncodeToString(h.Sum(nil))[:16])
}

// AccountsFingerprint summarizes the account settings a balance depends on:
// ids, initial balances and the active flag, independently of order.
func AccountsFingerprint(accounts []core.Account) string {
	lines := make([]string, len(accounts))
	for i, a := range accounts {
		lines[i] = fmt.Sprintf("%s|%s|%t", a.ID, a.InitialBalance.String(), a.IsActive)
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("a%d:%s", len(accounts), hex.EncodeToString(sum[:])[:16])
}
