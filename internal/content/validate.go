package content

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxMetaDescriptionLength is the upper bound, in characters, for meta descriptions.
const MaxMetaDescriptionLength = 160

// PostFields are the client-editable fields of a post.
type PostFields struct {
	Title           string     `json:"title" validate:"required"`
	Excerpt         string     `json:"excerpt" validate:"required"`
	Tags            Tags       `json:"tags" validate:"min=1"`
	Content         Blocks     `json:"content"`
	MetaTitle       string     `json:"meta_title"`
	MetaDescription string     `json:"meta_description" validate:"max=160"`
	SocialImageID   *uint      `json:"social_image_id" validate:"omitempty,gt=0"`
	CanonicalURL    string     `json:"canonical_url" validate:"omitempty,absurl"`
	PublishAt       *time.Time `json:"publish_at"`
}

// ValidationError carries per-field messages for user-correctable input problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", key, e.Fields[key]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("absurl", func(fl validator.FieldLevel) bool {
		return IsAbsoluteURL(fl.Field().String())
	})
	return v
}

// IsAbsoluteURL reports whether raw parses as a URL with both scheme and host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

// ValidatePost normalises input and checks every field and block. It returns
// the normalised fields, or a *ValidationError describing each problem.
func ValidatePost(input PostFields) (PostFields, error) {
	fields := input
	fields.Title = strings.TrimSpace(input.Title)
	fields.Excerpt = strings.TrimSpace(input.Excerpt)
	fields.Tags = input.Tags.Normalize()
	fields.MetaTitle = strings.TrimSpace(input.MetaTitle)
	fields.MetaDescription = strings.TrimSpace(input.MetaDescription)
	fields.CanonicalURL = strings.TrimSpace(input.CanonicalURL)
	fields.Content = normalizeBlocks(input.Content)

	verr := &ValidationError{}

	if err := validate.Struct(fields); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return PostFields{}, err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), messageFor(fe))
		}
	}

	for i, block := range fields.Content {
		prefix := fmt.Sprintf("content[%d]", i)
		if block == nil {
			verr.add(prefix, "must not be null")
			continue
		}
		validateBlock(verr, prefix, block)
	}

	if len(verr.Fields) > 0 {
		return PostFields{}, verr
	}
	return fields, nil
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least one entry"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return "must be a positive id"
	case "absurl":
		return "must be an absolute URL"
	default:
		return "is invalid"
	}
}

var (
	textFormats    = []string{string(FormatMarkdown), string(FormatHTML), string(FormatPlain)}
	alignments     = []string{"", "left", "center", "right"}
	imageSizes     = []string{"", "small", "medium", "large", "full"}
	buttonVariants = []string{"", "primary", "secondary", "outline"}
)

func validateBlock(verr *ValidationError, prefix string, block Block) {
	Match(block,
		func(t TextBlock) struct{} {
			if strings.TrimSpace(t.Content) == "" {
				verr.add(prefix+".content", "is required")
			}
			if !oneOf(string(t.Format), textFormats) {
				verr.add(prefix+".format", "must be one of markdown, html, plain")
			}
			return struct{}{}
		},
		func(img ImageBlock) struct{} {
			if img.ImageID == 0 {
				verr.add(prefix+".image_id", "must be a positive image id")
			}
			if !oneOf(img.Alignment, alignments) {
				verr.add(prefix+".alignment", "must be one of left, center, right")
			}
			if !oneOf(img.Size, imageSizes) {
				verr.add(prefix+".size", "must be one of small, medium, large, full")
			}
			return struct{}{}
		},
		func(cta CTABlock) struct{} {
			if cta.ButtonText == "" {
				verr.add(prefix+".button_text", "is required")
			}
			switch {
			case cta.ButtonURL == "":
				verr.add(prefix+".button_url", "is required")
			case !strings.HasPrefix(cta.ButtonURL, "/") && !IsAbsoluteURL(cta.ButtonURL):
				verr.add(prefix+".button_url", "must be an absolute URL or a site path")
			}
			if !oneOf(cta.ButtonVariant, buttonVariants) {
				verr.add(prefix+".button_variant", "must be one of primary, secondary, outline")
			}
			if !oneOf(cta.Alignment, alignments) {
				verr.add(prefix+".alignment", "must be one of left, center, right")
			}
			return struct{}{}
		},
	)
}

// normalizeBlocks trims string attributes and fills in the default text format.
func normalizeBlocks(blocks Blocks) Blocks {
	out := make(Blocks, 0, len(blocks))
	for _, block := range blocks {
		if block == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, Match(block,
			func(t TextBlock) Block {
				t.Format = TextFormat(strings.ToLower(strings.TrimSpace(string(t.Format))))
				if t.Format == "" {
					t.Format = FormatMarkdown
				}
				return t
			},
			func(img ImageBlock) Block {
				img.Caption = strings.TrimSpace(img.Caption)
				img.Alt = strings.TrimSpace(img.Alt)
				img.Alignment = strings.ToLower(strings.TrimSpace(img.Alignment))
				img.Size = strings.ToLower(strings.TrimSpace(img.Size))
				return img
			},
			func(cta CTABlock) Block {
				cta.ButtonText = strings.TrimSpace(cta.ButtonText)
				cta.ButtonURL = strings.TrimSpace(cta.ButtonURL)
				cta.ButtonVariant = strings.ToLower(strings.TrimSpace(cta.ButtonVariant))
				cta.Alignment = strings.ToLower(strings.TrimSpace(cta.Alignment))
				return cta
			},
		))
	}
	return out
}

func oneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
