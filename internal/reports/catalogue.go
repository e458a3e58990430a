package reports

import (
	"fmt"
	"slices"
	"strings"

	"cureports/internal/queryapi"
)

// Item is one report to generate: a query execution and the key its result is
// published under.
type Item struct {
	Request queryapi.Request
	Key     string
}

type tokenKind string

const (
	kindERC20 tokenKind = "ERC20"
	kindNFT   tokenKind = "NFT"
)

type tokenContract struct {
	address string
	kind    tokenKind
}

type timeWindow struct {
	format string
	rng    string
}

func erc20And721Contracts() []tokenContract {
	return []tokenContract{
		{"0x64060aB139Feaae7f06Ca4E63189D86aDEb51691", kindERC20}, // UNIM
		{"0x431CD3C9AC9Fc73644BF68bF5691f4B83F9E104f", kindERC20}, // RBW
		{"0xdC0479CC5BbA033B3e7De9F178607150B3AbCe1f", kindNFT},   // unicorns
		{"0xA2a13cE1824F3916fC84C65e559391fc6674e6e8", kindNFT},   // lands
		{"0xa7D50EE3D7485288107664cf758E877a0D351725", kindNFT},   // shadowcorns
	}
}

func erc1155Contracts() []string {
	return []string{"0x99A558BDBdE247C2B2716f0D4cFb0E246DFB697D"}
}

func timeWindows() []timeWindow {
	return []timeWindow{
		{format: "YYYY-MM-DD HH24", rng: "24 hours"},
		{format: "YYYY-MM-DD HH24", rng: "7 days"},
		{format: "YYYY-MM-DD", rng: "30 days"},
	}
}

func recentSaleAmounts() []int {
	return []int{10, 100}
}

func rangeKey(query, address, rng string) string {
	return fmt.Sprintf("%s/%s/%s/data.json", query, address, strings.ReplaceAll(rng, " ", "_"))
}

func addressKey(query, address string) string {
	return fmt.Sprintf("%s/%s/data.json", query, address)
}

func item(query string, params queryapi.Params, key string) Item {
	return Item{Request: queryapi.NewRequest(query, params), Key: key}
}

// TokenomicsCatalogue enumerates every tokenomics report. Each call builds new
// parameter maps.
func TokenomicsCatalogue() []Item {
	var items []Item

	for _, c := range erc20And721Contracts() {
		for _, w := range timeWindows() {
			items = append(items, item("erc20_721_volume", queryapi.Params{
				"address":     c.address,
				"type":        string(c.kind),
				"time_format": w.format,
				"time_range":  w.rng,
			}, rangeKey("erc20_721_volume", c.address, w.rng)))
		}
	}

	for _, c := range erc20And721Contracts() {
		for _, w := range timeWindows() {
			items = append(items, item("volume_change", queryapi.Params{
				"address":    c.address,
				"type":       string(c.kind),
				"time_range": w.rng,
			}, rangeKey("volume_change", c.address, w.rng)))
		}
	}

	for _, address := range erc1155Contracts() {
		for _, w := range timeWindows() {
			items = append(items, item("erc1155_volume", queryapi.Params{
				"address":     address,
				"time_format": w.format,
				"time_range":  w.rng,
			}, rangeKey("erc1155_volume", address, w.rng)))
		}
	}

	nfts := nftContracts()

	for _, address := range nfts {
		for _, amount := range recentSaleAmounts() {
			items = append(items, item("most_recent_sale", queryapi.Params{
				"address": address,
				"amount":  amount,
			}, fmt.Sprintf("most_recent_sale/%s/%d/data.json", address, amount)))
		}
	}

	for _, query := range []string{"most_active_buyers", "most_active_sellers"} {
		for _, address := range nfts {
			for _, w := range timeWindows() {
				items = append(items, item(query, queryapi.Params{
					"address":    address,
					"time_range": w.rng,
				}, rangeKey(query, address, w.rng)))
			}
		}
	}

	for _, query := range []string{"lagerst_owners", "total_supply_erc721"} {
		for _, address := range nfts {
			items = append(items, item(query, queryapi.Params{"address": address}, addressKey(query, address)))
		}
	}

	for _, address := range erc1155Contracts() {
		items = append(items, item("total_supply_terminus", queryapi.Params{"address": address}, addressKey("total_supply_terminus", address)))
	}

	return items
}

func nftContracts() []string {
	var out []string
	for _, c := range erc20And721Contracts() {
		if c.kind == kindNFT {
			out = append(out, c.address)
		}
	}
	return out
}

// Filter keeps the items whose query is listed in only. An empty only keeps everything.
func Filter(items []Item, only []string) []Item {
	if len(only) == 0 {
		return items
	}
	var out []Item
	for _, it := range items {
		if slices.Contains(only, it.Request.Name) {
			out = append(out, it)
		}
	}
	return out
}
