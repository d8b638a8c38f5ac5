package telegram

import (
	"errors"
	"strconv"
	"strings"
)

const HelpText = `Commands:
/list - tracked products with current and lowest price
/add <url> [target] - start tracking a product
/remove <id> - stop tracking a product
/target <id> <price|off> - set or clear the target price
/check [id] - check one product now, or all of them
/history <id> - recent prices of a product
/help - show this help

Supported stores: amazon.in, flipkart.com
Example:
/add https://www.amazon.in/dp/B0BX2L8PBT 24999
`

var ErrInvalidArguments = errors.New("invalid arguments")

func ParseAddArgs(args string) (url, target string, err error) {
	parts := strings.Fields(args)
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	}
	return "", "", ErrInvalidArguments
}

func ParseTargetArgs(args string) (uint, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, "", ErrInvalidArguments
	}
	id, err := ParseProductID(parts[0])
	if err != nil {
		return 0, "", err
	}
	switch strings.ToLower(parts[1]) {
	case "off", "none", "clear":
		return id, "", nil
	}
	return id, parts[1], nil
}

func ParseProductID(args string) (uint, error) {
	idStr := strings.TrimPrefix(strings.TrimSpace(args), "#")
	if idStr == "" {
		return 0, ErrInvalidArguments
	}
	value, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || value == 0 {
		return 0, ErrInvalidArguments
	}
	return uint(value), nil
}
