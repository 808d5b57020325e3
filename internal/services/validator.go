package services

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// ValidatorConfig holds the admission constraints for submitted inputs.
type ValidatorConfig struct {
	AcceptedTypes []string // exact MIME types or class wildcards such as "image/*"
	MaxSizeBytes  int64    // zero disables the size constraint
	RejectionTTL  time.Duration
}

// Validator filters raw inputs into admitted documents and rejection records.
type Validator struct {
	config ValidatorConfig
	now    func() time.Time
}

// NewValidator creates a Validator for the given constraints.
func NewValidator(config ValidatorConfig) *Validator {
	return &Validator{config: config, now: time.Now}
}

// Validate admits every input whose content type is accepted and that passes the
// configured constraints. Each rejected input yields one record carrying the
// first failed constraint.
func (v *Validator) Validate(inputs []models.RawInput) ([]models.Document, []models.RejectionRecord) {
	admitted := make([]models.Document, 0, len(inputs))
	rejected := make([]models.RejectionRecord, 0)
	now := v.now()

	for _, in := range inputs {
		mimeType := in.MimeType
		if strings.TrimSpace(mimeType) == "" && len(in.Bytes) > 0 {
			mimeType = sniffContentType(in.Bytes)
		}
		class, err := v.check(in, mimeType)
		if err != nil {
			slog.Debug("Input rejected.", "fileName", in.Name, "mimeType", mimeType, "reason", err.Error())
			rejected = append(rejected, models.RejectionRecord{
				FileName:   in.Name,
				Reason:     err.Error(),
				RejectedAt: now,
				ExpiresAt:  now.Add(v.config.RejectionTTL),
			})
			continue
		}
		admitted = append(admitted, models.Document{
			ID:        uuid.New(),
			Name:      in.Name,
			SizeBytes: in.SizeBytes,
			MimeType:  mimeType,
			MimeClass: class,
			Bytes:     in.Bytes,
		})
	}
	return admitted, rejected
}

func (v *Validator) check(in models.RawInput, mimeType string) (models.MimeClass, error) {
	mediaType, ok := v.accepts(mimeType)
	if !ok {
		return "", models.ErrUnsupportedType
	}
	// Oversized remote inputs arrive without bytes, so the declared size counts too.
	if v.config.MaxSizeBytes > 0 && max(in.SizeBytes, int64(len(in.Bytes))) > v.config.MaxSizeBytes {
		return "", models.ErrFileTooLarge
	}
	if len(in.Bytes) == 0 {
		return "", models.ErrEmptyInput
	}
	if mediaType == "application/pdf" {
		return models.MimeClassPDF, nil
	}
	if strings.HasPrefix(mediaType, "image/") {
		return models.MimeClassImage, nil
	}
	// Accepted by configuration but not processable by the rasterizer.
	return "", models.ErrUnsupportedType
}

// accepts reports whether mimeType matches one of the accepted types, returning
// the normalized media type.
func (v *Validator) accepts(mimeType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", false
	}
	for _, accepted := range v.config.AcceptedTypes {
		accepted = strings.ToLower(strings.TrimSpace(accepted))
		if class, ok := strings.CutSuffix(accepted, "/*"); ok {
			if strings.HasPrefix(mediaType, class+"/") {
				return mediaType, true
			}
			continue
		}
		if mediaType == accepted {
			return mediaType, true
		}
	}
	return mediaType, false
}

// sniffContentType detects the type of an input that arrived without one, using
// at most the first 512 bytes.
func sniffContentType(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}
