package cart

import "strings"

// KeySeparator joins product and side ids in a line key.
const KeySeparator = "|"

// ValidID reports whether id can take part in a line key. Ids carrying the
// separator would make two different lines share a key, so lines using them
// are never stored.
func ValidID(id string) bool {
	return !strings.Contains(id, KeySeparator)
}

// ItemKey returns the identity of a cart line. A line without a side is keyed
// by the product id alone. It is injective over ids accepted by ValidID.
func ItemKey(productID, sideID string) string {
	if sideID == "" {
		return productID
	}
	return productID + KeySeparator + sideID
}
