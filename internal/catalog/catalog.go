package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/compass/internal/chain"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// MaxSuggestionDistance is the largest edit distance offered as a
// "did you mean" suggestion.
const MaxSuggestionDistance = 3

// Catalog is an immutable, ordered set of assets keyed by id.
type Catalog struct {
	assets []Asset
	index  map[string]int
}

// Build validates raw currencies in provider order. Malformed entries are
// dropped and reported; Build itself never fails.
func Build(raw []RawCurrency) (*Catalog, []error) {
	c := &Catalog{
		assets: make([]Asset, 0, len(raw)),
		index:  make(map[string]int, len(raw)),
	}

	var problems []error
	for i, rc := range raw {
		asset, err := toAsset(rc)
		if err != nil {
			problems = append(problems, malformed(i, rc.ID, err.Error()))
			continue
		}
		if _, dup := c.index[asset.ID]; dup {
			problems = append(problems, malformed(i, rc.ID, "duplicate id"))
			continue
		}
		c.index[asset.ID] = len(c.assets)
		c.assets = append(c.assets, asset)
	}

	return c, problems
}

func toAsset(rc RawCurrency) (Asset, error) {
	id := normalizeID(rc.ID)
	if id == "" {
		return Asset{}, errors.New("missing id")
	}
	symbol := strings.TrimSpace(rc.Symbol)
	if symbol == "" {
		return Asset{}, errors.New("missing symbol")
	}

	chainID, err := chain.ParseID(string(rc.ChainID))
	if err != nil {
		return Asset{}, fmt.Errorf("unparsable chain id %q", string(rc.ChainID))
	}

	var addr common.Address
	if rc.Address != "" {
		if !chain.IsValidAddress(rc.Address) {
			return Asset{}, fmt.Errorf("invalid address %q", rc.Address)
		}
		addr = common.HexToAddress(rc.Address)
	}

	var decimals int
	switch {
	case rc.Decimals != nil:
		decimals = *rc.Decimals
	case isNativeAddress(addr):
		decimals = defaultNativeDecimals
	default:
		return Asset{}, errors.New("missing decimals")
	}
	if decimals < 0 || decimals > chain.MaxDecimals {
		return Asset{}, fmt.Errorf("decimals %d out of range", decimals)
	}

	return Asset{
		ID:              id,
		Symbol:          symbol,
		ContractAddress: addr,
		Decimals:        uint8(decimals), //nolint:gosec // bounded above
		ChainID:         chainID,
		Image:           rc.Image,
	}, nil
}

func malformed(position int, id, reason string) error {
	return compasserr.WithDetails(compasserr.ErrCatalogEntryMalformed, map[string]string{
		"position": strconv.Itoa(position),
		"id":       id,
		"reason":   reason,
	})
}

// Assets returns the assets in provider order.
func (c *Catalog) Assets() []Asset {
	if c == nil {
		return nil
	}
	out := make([]Asset, len(c.assets))
	copy(out, c.assets)
	return out
}

// Len returns the number of assets.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.assets)
}

// Find returns the asset with the given id.
func (c *Catalog) Find(id string) (Asset, error) {
	id = normalizeID(id)
	if c != nil {
		if i, ok := c.index[id]; ok {
			return c.assets[i], nil
		}
	}

	err := compasserr.WithDetails(compasserr.ErrAssetNotFound, map[string]string{"id": id})
	if suggestions := c.Suggest(id); len(suggestions) > 0 {
		err = compasserr.WithSuggestion(err, "did you mean: "+strings.Join(suggestions, ", ")+"?")
	}
	return Asset{}, err
}

// Suggest returns asset ids within MaxSuggestionDistance of id, closest first.
func (c *Catalog) Suggest(id string) []string {
	if c == nil || id == "" {
		return nil
	}

	type candidate struct {
		id   string
		dist int
		pos  int
	}
	var candidates []candidate
	needle := strings.ToLower(id)
	for i, a := range c.assets {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(a.ID))
		if d <= MaxSuggestionDistance {
			candidates = append(candidates, candidate{id: a.ID, dist: d, pos: i})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].pos < candidates[j].pos
	})

	out := make([]string, len(candidates))
	for i, cand := range candidates {
		out[i] = cand.id
	}
	return out
}

// SelectInitial picks the first asset on the preferred chain, else the first
// asset. It reports false only when assets is empty.
func SelectInitial(assets []Asset, preferredWire string) (Asset, bool) {
	if len(assets) == 0 {
		return Asset{}, false
	}
	for _, a := range assets {
		if chain.EqualWire(a.ChainID.Wire(), preferredWire) {
			return a, true
		}
	}
	return assets[0], true
}
