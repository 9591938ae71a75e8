package content

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// BlockKind is the discriminator stored in the "type" field of every block.
type BlockKind string

const (
	KindText  BlockKind = "text"
	KindImage BlockKind = "image"
	KindCTA   BlockKind = "cta"
)

// TextFormat describes how the content of a text block is marked up.
type TextFormat string

const (
	FormatMarkdown TextFormat = "markdown"
	FormatHTML     TextFormat = "html"
	FormatPlain    TextFormat = "plain"
)

// Block is one ordered unit of post content. The set of implementations is
// closed: only TextBlock, ImageBlock and CTABlock satisfy it.
type Block interface {
	Kind() BlockKind
	block()
}

// TextBlock holds a run of marked-up prose.
type TextBlock struct {
	Content string     `json:"content"`
	Format  TextFormat `json:"format"`
}

// ImageBlock references a stored image by id. Image bytes are never embedded.
type ImageBlock struct {
	ImageID   uint   `json:"image_id"`
	Caption   string `json:"caption,omitempty"`
	Alt       string `json:"alt,omitempty"`
	Alignment string `json:"alignment,omitempty"`
	Size      string `json:"size,omitempty"`
}

// CTABlock is a call-to-action with a button.
type CTABlock struct {
	Content       string `json:"content"`
	ButtonText    string `json:"button_text"`
	ButtonURL     string `json:"button_url"`
	ButtonVariant string `json:"button_variant,omitempty"`
	Alignment     string `json:"alignment,omitempty"`
}

func (TextBlock) Kind() BlockKind  { return KindText }
func (ImageBlock) Kind() BlockKind { return KindImage }
func (CTABlock) Kind() BlockKind   { return KindCTA }

func (TextBlock) block()  {}
func (ImageBlock) block() {}
func (CTABlock) block()   {}

// Match dispatches b to the handler for its variant. Every variant must be
// handled, so adding a block type breaks every call site until it is covered.
func Match[T any](b Block, onText func(TextBlock) T, onImage func(ImageBlock) T, onCTA func(CTABlock) T) T {
	switch v := b.(type) {
	case TextBlock:
		return onText(v)
	case *TextBlock:
		return onText(*v)
	case ImageBlock:
		return onImage(v)
	case *ImageBlock:
		return onImage(*v)
	case CTABlock:
		return onCTA(v)
	case *CTABlock:
		return onCTA(*v)
	default:
		// unreachable: Block is sealed
		panic(fmt.Sprintf("content: unknown block %T", b))
	}
}

func (t TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return json.Marshal(struct {
		Type BlockKind `json:"type"`
		alias
	}{KindText, alias(t)})
}

func (i ImageBlock) MarshalJSON() ([]byte, error) {
	type alias ImageBlock
	return json.Marshal(struct {
		Type BlockKind `json:"type"`
		alias
	}{KindImage, alias(i)})
}

func (c CTABlock) MarshalJSON() ([]byte, error) {
	type alias CTABlock
	return json.Marshal(struct {
		Type BlockKind `json:"type"`
		alias
	}{KindCTA, alias(c)})
}

// Blocks is the ordered content sequence of a post or version. It is stored as
// a JSON document column.
type Blocks []Block

// UnmarshalJSON decodes a JSON array of tagged blocks.
func (b *Blocks) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*b = Blocks{}
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return fmt.Errorf("content: blocks must be an array: %w", err)
	}

	out := make(Blocks, 0, len(raws))
	for i, raw := range raws {
		block, err := decodeBlock(raw)
		if err != nil {
			return fmt.Errorf("content: block %d: %w", i, err)
		}
		out = append(out, block)
	}
	*b = out
	return nil
}

func decodeBlock(raw json.RawMessage) (Block, error) {
	var head struct {
		Type BlockKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch BlockKind(strings.ToLower(string(head.Type))) {
	case KindText:
		var t TextBlock
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return t, nil
	case KindImage:
		var i ImageBlock
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, err
		}
		return i, nil
	case KindCTA:
		var c CTABlock
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "":
		return nil, fmt.Errorf("missing block type")
	default:
		return nil, fmt.Errorf("unknown block type %q", head.Type)
	}
}

// MarshalJSON always encodes an array, never null.
func (b Blocks) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Block(b))
}

// Value implements driver.Valuer.
func (b Blocks) Value() (driver.Value, error) {
	data, err := b.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (b *Blocks) Scan(value interface{}) error {
	if b == nil {
		return fmt.Errorf("content.Blocks: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*b = Blocks{}
		return nil
	case []byte:
		return b.UnmarshalJSON(v)
	case string:
		return b.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("content.Blocks: unsupported Scan type %T", value)
	}
}

// Clone returns a copy that shares no backing array with b.
func (b Blocks) Clone() Blocks {
	if b == nil {
		return Blocks{}
	}
	out := make(Blocks, len(b))
	copy(out, b)
	return out
}

// GormDBDataType picks a column type large enough for the JSON document.
func (Blocks) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

func jsonColumnType(db *gorm.DB) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "mysql" {
		return "LONGTEXT"
	}
	return "TEXT"
}
