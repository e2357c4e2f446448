// README: Common money value object used across modules.
package types

// Money holds an amount in the currency's minor unit (centavos for BRL).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
