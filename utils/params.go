package utils

import (
	"fmt"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// ParseID reads a positive integer path parameter.
func ParseID(ps httprouter.Params, name string) (int64, error) {
	id, err := strconv.ParseInt(ps.ByName(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, ps.ByName(name))
	}
	return id, nil
}
