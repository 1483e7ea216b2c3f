package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/jsonx"
)

// imageKeys is the order in which the responsive image set is flattened.
var imageKeys = []string{"thumbnail", "mobile", "tablet", "desktop"}

// DecodeCatalog reads a JSON array of products. Besides an "images" array,
// the responsive {"image":{"thumbnail":...}} form is accepted and flattened
// thumbnail first.
func DecodeCatalog(data []byte) ([]Product, error) {
	var out []Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		if p.ID == "" {
			return errors.Errorf("product %d: missing id", len(out))
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder) (Product, error) {
	var p Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = jsonx.DecodeDecimal(d)
		case "category":
			p.Category, err = d.Str()
		case "images":
			p.Images, err = decodeStrings(d)
		case "image":
			p.Images, err = decodeImageSet(d)
		case "variants":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "colors":
					p.Variants.Colors, err = decodeStrings(d)
				case "sizes":
					p.Variants.Sizes, err = decodeStrings(d)
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
	return p, err
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func decodeImageSet(d *jx.Decoder) ([]string, error) {
	set := make(map[string]string, len(imageKeys))
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		set[key] = s
		return nil
	}); err != nil {
		return nil, err
	}
	var out []string
	for _, k := range imageKeys {
		if v := set[k]; v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}
