package reports

import (
	"time"

	"cureports/internal/queryapi"
)

// pinnedToTimestamp reports whether a bank query takes a block_timestamp parameter.
func pinnedToTimestamp(name string) bool {
	switch name {
	case "cu-bank-withdrawals-total", "cu-bank-withdrawals-events":
		return true
	default:
		return false
	}
}

// BankItems builds one report per saved query of the token owner. Withdrawal queries are
// pinned to now.
func BankItems(saved []queryapi.Query, now time.Time) []Item {
	items := make([]Item, 0, len(saved))
	for _, q := range saved {
		params := queryapi.Params{}
		if pinnedToTimestamp(q.Name) {
			params["block_timestamp"] = now.Unix()
		}
		items = append(items, item(q.Name, params, "cu-bank/"+q.Name+"/data.json"))
	}
	return items
}
