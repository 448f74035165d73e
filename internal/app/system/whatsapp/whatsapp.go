// Package whatsapp builds wa.me join links for groups.
package whatsapp

import (
	"net/url"
	"strings"

	"github.com/unestilodevida/cellhub/internal/app/system/normalize"
)

const defaultMessage = "Hola, quiero unirme al grupo"

// Link returns a wa.me URL for the given phone number with a
// pre-filled join message mentioning the group name. Returns an
// empty string when no usable phone number is present.
func Link(phone, groupName string) string {
	digits := strings.TrimPrefix(normalize.Phone(phone), "+")
	if digits == "" {
		return ""
	}

	msg := defaultMessage
	if groupName != "" {
		msg += " " + groupName
	}
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(msg)
}
