package vm

import "github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"

// scriptNum mirrors txscript's own minimal-encoded script number, used for
// OP_ADD/OP_SUB/OP_NEGATE/OP_MIN and the boolean interpretation of a stack
// element (CheckErrorCondition-style truthiness).
type scriptNum int64

func makeScriptNum(b []byte) (scriptNum, error) {
	if len(b) > 8 {
		return 0, bvmerr.New("makeScriptNum", bvmerr.InvalidEncoding, "numeric value too large", nil)
	}
	if len(b) == 0 {
		return 0, nil
	}
	var result int64
	for i, v := range b {
		result |= int64(v) << uint8(8*i)
	}
	if b[len(b)-1]&0x80 != 0 {
		result &^= 0x80 << uint8(8*(len(b)-1))
		return scriptNum(-result), nil
	}
	return scriptNum(result), nil
}

func (n scriptNum) Bytes() []byte {
	if n == 0 {
		return nil
	}
	negative := n < 0
	abs := int64(n)
	if negative {
		abs = -abs
	}
	var result []byte
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}
	if result[len(result)-1]&0x80 != 0 {
		extra := byte(0x00)
		if negative {
			extra = 0x80
		}
		result = append(result, extra)
	} else if negative {
		result[len(result)-1] |= 0x80
	}
	return result
}

// asBool mirrors txscript's stack-element truthiness: all-zero (or empty,
// or the single negative-zero encoding 0x80) is false.
func asBool(b []byte) bool {
	for i, v := range b {
		if v != 0 {
			if i == len(b)-1 && v == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

func boolBytes(v bool) []byte {
	if v {
		return []byte{1}
	}
	return nil
}
