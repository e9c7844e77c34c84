package domain

import (
	"fmt"
	"strings"
)

const (
	orderRefPrefix       = "ORD"
	orderConfirmPrefix   = "WMS:ORDER:v1"
	pickTaskConfirmLabel = "PICKTASK"
)

// OrderRef is the parsed form of a task reference "ORD:{platform}:{shop}:{ext_order_no}".
type OrderRef struct {
	Platform   string
	ShopID     string
	ExtOrderNo string
}

// ParseOrderRef splits a task reference. The external order number keeps any
// further colons. All three parts must be non-empty.
func ParseOrderRef(ref string) (OrderRef, bool) {
	parts := strings.SplitN(strings.TrimSpace(ref), ":", 4)
	if len(parts) != 4 || parts[0] != orderRefPrefix {
		return OrderRef{}, false
	}
	for _, p := range parts[1:] {
		if p == "" {
			return OrderRef{}, false
		}
	}
	return OrderRef{Platform: parts[1], ShopID: parts[2], ExtOrderNo: parts[3]}, true
}

// ConfirmationCode is the code printed on the pick ticket for this order.
func (r OrderRef) ConfirmationCode() string {
	return fmt.Sprintf("%s:%s:%s:%s", orderConfirmPrefix, r.Platform, r.ShopID, r.ExtOrderNo)
}

// ExpectedConfirmationCode derives the hand-off code for a task. Tasks
// without an order reference fall back to "PICKTASK:{task_id}".
func ExpectedConfirmationCode(taskRef string, taskID int) string {
	if ref, ok := ParseOrderRef(taskRef); ok {
		return ref.ConfirmationCode()
	}
	return fmt.Sprintf("%s:%d", pickTaskConfirmLabel, taskID)
}

// TaskConfirmationCode is ExpectedConfirmationCode for a task snapshot.
func TaskConfirmationCode(task PickTask) string {
	return ExpectedConfirmationCode(task.RefString(), task.ID)
}

// CanCommit compares the operator input with the expected code after
// trimming surrounding whitespace. The match is exact and case-sensitive;
// blank input never matches. This guards against accidental commits and is
// not a security check.
func CanCommit(input, expected string) bool {
	in := strings.TrimSpace(input)
	if in == "" {
		return false
	}
	return in == strings.TrimSpace(expected)
}
