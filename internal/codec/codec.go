// Package codec packs instrument lists into one compact string for the
// key-value cache.
//
// Records are joined by ',' and each record reads
//
//	[quantity*]base/quote[(settlement)][-rest]=raw[+remark][@warning...][#tag]
//
// Optional parts are only written when they carry information: the
// quantity when above 1, the settlement when it differs from the quote,
// the rest when non-empty. Reserved characters inside fields are written
// as %XX so decode never splits a field's own content; payloads without
// any escape read the same as the unescaped legacy format.
package codec

import (
	"strconv"
	"strings"

	"crypto_board/internal/domain"
)

const (
	recordSep  = ','
	rawSep     = '='
	remarkSep  = '+'
	warningSep = '@'
	tagSep     = '#'
)

// Encode serializes instruments in order.
func Encode(records []domain.Instrument) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte(recordSep)
		}
		encodeRecord(&b, r)
	}
	return b.String()
}

func encodeRecord(b *strings.Builder, r domain.Instrument) {
	if r.Quantity > 1 {
		b.WriteString(strconv.Itoa(r.Quantity))
		b.WriteByte('*')
	}
	b.WriteString(escape(r.BaseCode, codeReserved))
	b.WriteByte('/')
	b.WriteString(escape(r.QuoteCode, codeReserved))
	if r.SettlementCode != r.QuoteCode {
		b.WriteByte('(')
		b.WriteString(escape(r.SettlementCode, codeReserved))
		b.WriteByte(')')
	}
	if r.RestOfSymbol != "" {
		b.WriteByte('-')
		b.WriteString(escape(r.RestOfSymbol, recordReserved))
	}

	b.WriteByte(rawSep)
	b.WriteString(escape(r.RawSymbol, recordReserved))

	if r.Remark != "" {
		b.WriteByte(remarkSep)
		b.WriteString(escape(r.Remark, recordReserved))
	}
	for _, w := range r.Warnings {
		if w == "" {
			continue
		}
		b.WriteByte(warningSep)
		b.WriteString(escape(w, recordReserved))
	}
	if r.SearchTag != "" {
		b.WriteByte(tagSep)
		b.WriteString(escape(r.SearchTag, recordReserved))
	}
}

// Decode parses a payload produced by Encode. Any malformed record fails the
// whole payload with a *domain.CodecError.
func Decode(s string) ([]domain.Instrument, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, string(recordSep))
	out := make([]domain.Instrument, 0, len(parts))
	for i, rec := range parts {
		inst, err := decodeRecord(rec)
		if err != nil {
			err.Record = i
			err.Input = rec
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// decodeRecord peels the optional suffixes off in a fixed order (tag,
// warnings, remark) before splitting raw symbol from descriptor on the last
// '='.
func decodeRecord(rec string) (domain.Instrument, *domain.CodecError) {
	var inst domain.Instrument
	body := rec

	if i := strings.IndexByte(body, tagSep); i >= 0 {
		tag, ok := unescape(body[i+1:])
		if !ok {
			return inst, codecErr("bad escape in search tag")
		}
		inst.SearchTag = tag
		body = body[:i]
	}

	if i := strings.IndexByte(body, warningSep); i >= 0 {
		for _, w := range strings.Split(body[i+1:], string(warningSep)) {
			uw, ok := unescape(w)
			if !ok {
				return inst, codecErr("bad escape in warning")
			}
			inst.Warnings = append(inst.Warnings, uw)
		}
		body = body[:i]
	}

	if i := strings.IndexByte(body, remarkSep); i >= 0 {
		remark, ok := unescape(body[i+1:])
		if !ok {
			return inst, codecErr("bad escape in remark")
		}
		inst.Remark = remark
		body = body[:i]
	}

	i := strings.LastIndexByte(body, rawSep)
	if i < 0 {
		return inst, codecErr("missing '='")
	}
	raw, ok := unescape(body[i+1:])
	if !ok {
		return inst, codecErr("bad escape in raw symbol")
	}

	sym, cerr := decodeDescriptor(body[:i])
	if cerr != nil {
		return inst, cerr
	}
	sym.RawSymbol = raw
	sym.DisplaySymbol = sym.Display()
	inst.CanonicalSymbol = sym
	return inst, nil
}

func decodeDescriptor(desc string) (domain.CanonicalSymbol, *domain.CodecError) {
	sym := domain.CanonicalSymbol{Quantity: 1}

	slash := strings.IndexByte(desc, '/')
	if slash < 0 {
		return sym, codecErr("missing '/'")
	}

	head := desc[:slash]
	if star := strings.IndexByte(head, '*'); star >= 0 {
		n, err := strconv.Atoi(head[:star])
		if err != nil || n < 1 {
			return sym, codecErr("bad quantity")
		}
		sym.Quantity = n
		head = head[star+1:]
	}

	var ok bool
	if sym.BaseCode, ok = unescape(head); !ok {
		return sym, codecErr("bad escape in base code")
	}

	tail := desc[slash+1:]
	quote := tail
	tail = ""
	if end := strings.IndexAny(quote, "(-"); end >= 0 {
		quote, tail = quote[:end], quote[end:]
	}
	if sym.QuoteCode, ok = unescape(quote); !ok {
		return sym, codecErr("bad escape in quote code")
	}

	sym.SettlementCode = sym.QuoteCode
	if strings.HasPrefix(tail, "(") {
		end := strings.IndexByte(tail, ')')
		if end < 0 {
			return sym, codecErr("unterminated settlement code")
		}
		if sym.SettlementCode, ok = unescape(tail[1:end]); !ok {
			return sym, codecErr("bad escape in settlement code")
		}
		tail = tail[end+1:]
	}

	if tail != "" {
		if tail[0] != '-' {
			return sym, codecErr("unexpected text after settlement code")
		}
		if sym.RestOfSymbol, ok = unescape(tail[1:]); !ok {
			return sym, codecErr("bad escape in rest of symbol")
		}
	}
	return sym, nil
}

func codecErr(reason string) *domain.CodecError {
	return &domain.CodecError{Reason: reason}
}
