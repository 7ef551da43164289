package validation

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/tradefolio/backend/src/logger"
)

// AllowedClientContentTypes is a map for quick lookup of allowed
// client-declared MIME types for import uploads.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // often used for CSV by older Excel
	"text/plain":               true, // CSVs are often plain text
	"application/octet-stream": true, // fallback, the decoder still checks the extension
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	if allowed, exists := AllowedClientContentTypes[strings.ToLower(contentType)]; !exists || !allowed {
		if logger.L != nil {
			logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		}
		return fmt.Errorf("client-declared file type '%s' is not allowed for import upload", contentType)
	}
	return nil
}

// xlsxMagic is the ZIP local-file signature; XLSX workbooks are ZIP containers.
var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// ValidateFileContent checks the actual content signature (magic bytes) of
// an uploaded file. CSVs must sniff as text; spreadsheets must carry the ZIP
// signature. Returns the detected content type.
func ValidateFileContent(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("file is empty")
	}

	if bytes.HasPrefix(data, xlsxMagic) {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	detected := http.DetectContentType(head)
	detected = strings.ToLower(strings.Split(detected, ";")[0])

	allowedDetectedTypes := map[string]bool{
		"text/plain":      true,
		"text/csv":        true,
		"application/csv": true,
		// utf-16 exports sniff as octet-stream; the parser rejects them
		// later if they are not actually tabular
		"application/octet-stream": true,
	}
	if !allowedDetectedTypes[detected] {
		return "", fmt.Errorf("file content type '%s' is not allowed for import upload", detected)
	}
	return detected, nil
}
