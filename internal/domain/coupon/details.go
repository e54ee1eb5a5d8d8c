package coupon

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Details is the variant-specific payload of a coupon, a closed set of
// shapes tagged by Type. Payloads are decoded and validated at the boundary;
// the discount engine never sees an untyped details blob.
type Details interface {
	CouponType() Type
	Validate() error
}

// CartWiseDetails configures a discount on the whole cart once its total
// reaches the threshold.
type CartWiseDetails struct {
	Threshold    decimal.Decimal
	Discount     decimal.Decimal
	DiscountType DiscountType
}

// CouponType implements Details.
func (CartWiseDetails) CouponType() Type { return TypeCartWise }

// Validate implements Details.
func (d CartWiseDetails) Validate() error {
	if !d.Threshold.IsPositive() {
		return invalidf("threshold must be a positive number")
	}
	if !d.Discount.IsPositive() {
		return invalidf("discount must be a positive number")
	}
	return validDiscountType(d.DiscountType)
}

// ProductWiseDetails configures a discount on a single product's line item.
type ProductWiseDetails struct {
	ProductID    int64
	Discount     decimal.Decimal
	DiscountType DiscountType
}

// CouponType implements Details.
func (ProductWiseDetails) CouponType() Type { return TypeProductWise }

// Validate implements Details.
func (d ProductWiseDetails) Validate() error {
	if d.ProductID <= 0 {
		return invalidf("product_id must be a positive integer")
	}
	if !d.Discount.IsPositive() {
		return invalidf("discount must be a positive number")
	}
	return validDiscountType(d.DiscountType)
}

// ProductQuantity pairs a product id with a quantity, used for both the
// "buy" requirements and the "get" grants of a bxgy coupon.
type ProductQuantity struct {
	ProductID int64
	Quantity  int
}

// BxGyDetails configures a "buy X get Y" promotion. One application of the
// coupon consumes the summed buy quantities and grants every get product's
// quantity for free, up to RepetitionLimit applications.
type BxGyDetails struct {
	BuyProducts     []ProductQuantity
	GetProducts     []ProductQuantity
	RepetitionLimit int
}

// CouponType implements Details.
func (BxGyDetails) CouponType() Type { return TypeBxGy }

// Validate implements Details.
func (d BxGyDetails) Validate() error {
	if len(d.BuyProducts) == 0 {
		return invalidf("buy_products must be a non-empty list")
	}
	if len(d.GetProducts) == 0 {
		return invalidf("get_products must be a non-empty list")
	}
	for _, p := range d.BuyProducts {
		if err := p.validate("buy_products"); err != nil {
			return err
		}
	}
	for _, p := range d.GetProducts {
		if err := p.validate("get_products"); err != nil {
			return err
		}
	}
	if d.RepetitionLimit <= 0 {
		return invalidf("repetition_limit must be a positive integer")
	}
	return nil
}

func (p ProductQuantity) validate(list string) error {
	if p.ProductID <= 0 {
		return invalidf("product_id in %s must be a positive integer", list)
	}
	if p.Quantity <= 0 {
		return invalidf("quantity in %s must be a positive integer", list)
	}
	return nil
}

func validDiscountType(t DiscountType) error {
	if t != DiscountPercentage && t != DiscountFixed {
		return invalidf("discount_type must be %q or %q", DiscountPercentage, DiscountFixed)
	}
	return nil
}

func invalidf(format string, a ...any) error {
	return errors.Wrapf(ErrInvalidDetails, format, a...)
}

// DecodeDetails decodes and validates a raw JSON details payload against the
// schema of the given coupon type. Monetary fields are read from the raw
// number text, so values never pass through binary floating point.
func DecodeDetails(t Type, raw []byte) (Details, error) {
	var (
		det Details
		err error
	)
	switch t {
	case TypeCartWise:
		det, err = decodeCartWise(raw)
	case TypeProductWise:
		det, err = decodeProductWise(raw)
	case TypeBxGy:
		det, err = decodeBxGy(raw)
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", t)
	}
	if err != nil {
		return nil, err
	}
	if err := det.Validate(); err != nil {
		return nil, err
	}
	return det, nil
}

func decodeCartWise(raw []byte) (Details, error) {
	// discount_type defaults to percentage when absent.
	out := CartWiseDetails{DiscountType: DiscountPercentage}
	var seenThreshold, seenDiscount bool

	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "threshold":
			out.Threshold, err = decodeMoney(d, key)
			seenThreshold = true
		case "discount":
			out.Discount, err = decodeMoney(d, key)
			seenDiscount = true
		case "discount_type":
			out.DiscountType, err = decodeDiscountType(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, invalidDecode(err)
	}
	if !seenThreshold {
		return nil, invalidf("missing required field %q for cart-wise coupon", "threshold")
	}
	if !seenDiscount {
		return nil, invalidf("missing required field %q for cart-wise coupon", "discount")
	}
	return out, nil
}

func decodeProductWise(raw []byte) (Details, error) {
	out := ProductWiseDetails{DiscountType: DiscountPercentage}
	var seenProduct, seenDiscount bool

	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			out.ProductID, err = d.Int64()
			if err != nil {
				err = errors.Wrap(err, "product_id")
			}
			seenProduct = true
		case "discount":
			out.Discount, err = decodeMoney(d, key)
			seenDiscount = true
		case "discount_type":
			out.DiscountType, err = decodeDiscountType(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, invalidDecode(err)
	}
	if !seenProduct {
		return nil, invalidf("missing required field %q for product-wise coupon", "product_id")
	}
	if !seenDiscount {
		return nil, invalidf("missing required field %q for product-wise coupon", "discount")
	}
	return out, nil
}

func decodeBxGy(raw []byte) (Details, error) {
	// repetition_limit defaults to 1 when absent.
	out := BxGyDetails{RepetitionLimit: 1}

	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "buy_products":
			out.BuyProducts, err = decodeProductQuantities(d, key)
		case "get_products":
			out.GetProducts, err = decodeProductQuantities(d, key)
		case "repetition_limit":
			out.RepetitionLimit, err = d.Int()
			if err != nil {
				err = errors.Wrap(err, "repetition_limit")
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, invalidDecode(err)
	}
	return out, nil
}

func decodeProductQuantities(d *jx.Decoder, list string) ([]ProductQuantity, error) {
	var out []ProductQuantity
	err := d.Arr(func(d *jx.Decoder) error {
		var (
			pq              ProductQuantity
			seenID, seenQty bool
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				pq.ProductID, err = d.Int64()
				seenID = true
			case "quantity":
				pq.Quantity, err = d.Int()
				seenQty = true
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if !seenID || !seenQty {
			return errors.Errorf("each entry must have product_id and quantity")
		}
		out = append(out, pq)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, list)
	}
	return out, nil
}

// decodeMoney reads a plain JSON number into an exact decimal, preserving
// the literal digits.
func decodeMoney(d *jx.Decoder, field string) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "%s must be a number", field)
	}
	if n.Str() {
		return decimal.Decimal{}, errors.Errorf("%s must be a number", field)
	}
	v, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, field)
	}
	return v, nil
}

func decodeDiscountType(d *jx.Decoder) (DiscountType, error) {
	s, err := d.Str()
	if err != nil {
		return "", errors.Wrap(err, "discount_type")
	}
	return DiscountType(s), nil
}

// invalidDecode tags a decode failure as an ErrInvalidDetails rejection
// while keeping what went wrong in the message.
func invalidDecode(err error) error {
	if errors.Is(err, ErrInvalidDetails) {
		return err
	}
	return invalidf("%s", err.Error())
}

// EncodeDetails renders a details payload to its canonical JSON form for
// storage and API responses. Monetary fields are written as raw number text.
func EncodeDetails(det Details) ([]byte, error) {
	var e jx.Encoder
	switch v := det.(type) {
	case CartWiseDetails:
		e.ObjStart()
		e.FieldStart("threshold")
		e.Raw([]byte(v.Threshold.String()))
		e.FieldStart("discount")
		e.Raw([]byte(v.Discount.String()))
		e.FieldStart("discount_type")
		e.Str(string(v.DiscountType))
		e.ObjEnd()
	case ProductWiseDetails:
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(v.ProductID)
		e.FieldStart("discount")
		e.Raw([]byte(v.Discount.String()))
		e.FieldStart("discount_type")
		e.Str(string(v.DiscountType))
		e.ObjEnd()
	case BxGyDetails:
		e.ObjStart()
		e.FieldStart("buy_products")
		encodeProductQuantities(&e, v.BuyProducts)
		e.FieldStart("get_products")
		encodeProductQuantities(&e, v.GetProducts)
		e.FieldStart("repetition_limit")
		e.Int(v.RepetitionLimit)
		e.ObjEnd()
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%T", det)
	}
	return e.Bytes(), nil
}

func encodeProductQuantities(e *jx.Encoder, pqs []ProductQuantity) {
	e.ArrStart()
	for _, pq := range pqs {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(pq.ProductID)
		e.FieldStart("quantity")
		e.Int(pq.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
}
