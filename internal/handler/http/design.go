package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// designMIMEs are the image types accepted for custom designs.
var designMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// validateDesign checks that data is a data:<type>;base64, URL of a
// supported image type whose decoded size is at most maxBytes. Media type
// parameters are refused so the stored size is bounded by maxBytes.
func validateDesign(data string, maxBytes int) error {
	meta, raw, ok := strings.Cut(data, ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return errors.New("design must be a data URL")
	}
	mime, params, _ := strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	if params != "base64" {
		return errors.New("design must be base64 encoded without parameters")
	}
	if _, ok := designMIMEs[mime]; !ok {
		return fmt.Errorf("unsupported design type %q", mime)
	}

	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(raw)) > maxBytes+2 {
		return fmt.Errorf("design is larger than %d bytes", maxBytes)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return errors.New("design payload is not valid base64")
	}
	if len(decoded) == 0 {
		return errors.New("design payload is empty")
	}
	if maxBytes > 0 && len(decoded) > maxBytes {
		return fmt.Errorf("design is larger than %d bytes", maxBytes)
	}
	return nil
}
