package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedBarcode is the best-effort decode of one raw scan string.
// A nil field means "not determinable from this text", never zero.
type ParsedBarcode struct {
	Raw            string   `json:"raw"`
	ItemID         *int     `json:"item_id,omitempty"`
	Qty            *int     `json:"qty,omitempty"`
	BatchCode      *string  `json:"batch_code,omitempty"`
	WarehouseID    *int     `json:"warehouse_id,omitempty"`
	ProductionDate *string  `json:"production_date,omitempty"`
	ExpiryDate     *string  `json:"expiry_date,omitempty"`
	Tokens         []string `json:"tokens,omitempty"`
}

// barcodePatch is the set of fields one decode layer wants to set.
// Non-nil fields overwrite the accumulator.
type barcodePatch struct {
	itemID         *int
	qty            *int
	batchCode      *string
	warehouseID    *int
	productionDate *string
	expiryDate     *string
	tokens         []string
}

// decodeLayer inspects the trimmed text and the result so far.
type decodeLayer func(text string, acc ParsedBarcode) barcodePatch

// decodeLayers run in order; later layers win on conflicting fields.
var decodeLayers = []decodeLayer{
	tokenLayer,
	gs1Layer,
	batchDateLayer,
}

var (
	tokenSeparator = regexp.MustCompile(`[\s,;]+`)
	gs1Numeric     = regexp.MustCompile(`^[0-9()]+$`)
	gs1Sequence    = regexp.MustCompile(`^(\(\d{2}\)[0-9A-Za-z]+)+$`)
	gs1Element     = regexp.MustCompile(`\((\d{2})\)([0-9A-Za-z]+)`)
	sixDigits      = regexp.MustCompile(`^\d{6}$`)
)

const gs1MinLength = 12

// DecodeBarcode decodes a raw scan into structured fields. It never fails:
// fragments that cannot be interpreted are left out of the result.
func DecodeBarcode(raw string) ParsedBarcode {
	text := strings.TrimSpace(raw)
	result := ParsedBarcode{Raw: text}
	if text == "" {
		return result
	}

	for _, layer := range decodeLayers {
		result.apply(layer(text, result))
	}
	return result
}

func (p *ParsedBarcode) apply(patch barcodePatch) {
	if patch.itemID != nil {
		p.ItemID = patch.itemID
	}
	if patch.qty != nil {
		p.Qty = patch.qty
	}
	if patch.batchCode != nil {
		p.BatchCode = patch.batchCode
	}
	if patch.warehouseID != nil {
		p.WarehouseID = patch.warehouseID
	}
	if patch.productionDate != nil {
		p.ProductionDate = patch.productionDate
	}
	if patch.expiryDate != nil {
		p.ExpiryDate = patch.expiryDate
	}
	if patch.tokens != nil {
		p.Tokens = patch.tokens
	}
}

// tokenLayer handles KEY:VALUE tokens such as "ITEM:3001 QTY:3 BATCH:ABC".
func tokenLayer(text string, _ ParsedBarcode) barcodePatch {
	tokens := SplitScanTokens(text)
	patch := barcodePatch{tokens: tokens}

	for _, token := range tokens {
		key, rest, found := strings.Cut(token, ":")
		// anything after a second colon is dropped
		value, _, _ := strings.Cut(rest, ":")
		value = strings.TrimSpace(value)
		if !found || value == "" {
			continue
		}

		switch strings.ToUpper(key) {
		case "ITEM":
			if n, ok := parseScanInt(value); ok {
				patch.itemID = &n
			}
		case "QTY":
			if n, ok := parseScanInt(value); ok {
				patch.qty = &n
			}
		case "BATCH", "LOT":
			v := value
			patch.batchCode = &v
		case "WH", "WAREHOUSE":
			if n, ok := parseScanInt(value); ok {
				patch.warehouseID = &n
			}
		case "PD", "PROD", "PRODUCTION", "MFG", "MFG_DATE":
			if d, ok := NormalizeDate(value); ok {
				patch.productionDate = &d
			}
		case "EXP", "ED", "EXPIRY", "EXPIRE", "EXPIRATION":
			if d, ok := NormalizeDate(value); ok {
				patch.expiryDate = &d
			}
		}
	}
	return patch
}

// gs1Layer extracts AIs 10 (batch), 11 (production) and 17 (expiry).
// Other AIs are ignored.
func gs1Layer(text string, _ ParsedBarcode) barcodePatch {
	var patch barcodePatch
	if !LooksLikeGS1(text) {
		return patch
	}

	for _, m := range gs1Element.FindAllStringSubmatch(text, -1) {
		ai, value := m[1], m[2]
		switch ai {
		case "10":
			v := value
			patch.batchCode = &v
		case "11":
			if d, ok := decodeGS1Date(value); ok {
				patch.productionDate = &d
			}
		case "17":
			if d, ok := decodeGS1Date(value); ok {
				patch.expiryDate = &d
			}
		}
	}
	return patch
}

// batchDateLayer treats a six-digit batch code as a YYMMDD production date
// when no production date was found explicitly. The batch code is kept.
func batchDateLayer(_ string, acc ParsedBarcode) barcodePatch {
	var patch barcodePatch
	if acc.ProductionDate != nil || acc.BatchCode == nil {
		return patch
	}

	code := strings.TrimSpace(*acc.BatchCode)
	if !sixDigits.MatchString(code) {
		return patch
	}
	if d, ok := NormalizeDate(code); ok {
		patch.productionDate = &d
	}
	return patch
}

// LooksLikeGS1 reports whether text should go through AI extraction: either
// only digits and parentheses, or a well-formed run of "(NN)value" elements.
func LooksLikeGS1(text string) bool {
	if len(text) < gs1MinLength {
		return false
	}
	return gs1Numeric.MatchString(text) || gs1Sequence.MatchString(text)
}

// SplitScanTokens splits on runs of whitespace, comma or semicolon.
func SplitScanTokens(text string) []string {
	parts := tokenSeparator.Split(strings.TrimSpace(text), -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func parseScanInt(value string) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}
