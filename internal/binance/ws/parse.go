package ws

import (
	"fmt"
	"strconv"
	"strings"
)

func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty price")
	}
	return strconv.ParseFloat(raw, 64)
}
