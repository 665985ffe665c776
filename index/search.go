package index

import (
	"strings"
)

// FindExactChar returns, in leaf order, the record numbers whose
// normalised character key equals value.
func (idx *Index) FindExactChar(value string) ([]uint32, error) {
	target := EncodeChar(value, idx.header.KeyLen)
	cur, err := idx.Seek(target, CompareChar)
	if err != nil {
		return nil, err
	}

	var out []uint32
	for {
		key, recno, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok || CompareChar(key, target) != 0 {
			break
		}
		out = append(out, recno)
	}

	return out, nil
}

// FindPrefixChar returns, in leaf order, the record numbers whose
// (trimmed) character key begins with prefix.
func (idx *Index) FindPrefixChar(prefix string) ([]uint32, error) {
	target := EncodeChar(prefix, idx.header.KeyLen)
	cur, err := idx.Seek(target, CompareChar)
	if err != nil {
		return nil, err
	}

	trimmedPrefix := strings.TrimRight(prefix, " ")

	// Keys with a common prefix form a contiguous range once sorted, so
	// the first non-matching key ends the scan.
	var out []uint32
	for {
		key, recno, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		trimmed := strings.TrimRight(string(key), " ")
		if !strings.HasPrefix(trimmed, trimmedPrefix) {
			break
		}
		out = append(out, recno)
	}

	return out, nil
}

// FindRangeNumeric returns, in leaf order, the record numbers whose
// numeric key lies within [min, max].
func (idx *Index) FindRangeNumeric(min, max float64) ([]uint32, error) {
	return idx.findRangeDouble(EncodeDouble(min), EncodeDouble(max))
}

// FindExactNumeric is equivalent to FindRangeNumeric(v, v).
func (idx *Index) FindExactNumeric(v float64) ([]uint32, error) {
	return idx.FindRangeNumeric(v, v)
}

// FindRangeDate returns, in leaf order, the record numbers whose date key
// (converted to JDN) lies within [min, max], inclusive, where min and max
// are "YYYYMMDD" or "YYYY-MM-DD" strings.
func (idx *Index) FindRangeDate(min, max string) ([]uint32, error) {
	minJDN, err := ParseDateToJDN(min)
	if err != nil {
		return nil, err
	}
	maxJDN, err := ParseDateToJDN(max)
	if err != nil {
		return nil, err
	}

	return idx.findRangeDouble(EncodeDouble(float64(minJDN)), EncodeDouble(float64(maxJDN)))
}

// FindExactDate is equivalent to FindRangeDate(v, v).
func (idx *Index) FindExactDate(v string) ([]uint32, error) {
	return idx.FindRangeDate(v, v)
}

func (idx *Index) findRangeDouble(minKey, maxKey []byte) ([]uint32, error) {
	cur, err := idx.Seek(minKey, CompareDouble)
	if err != nil {
		return nil, err
	}

	var out []uint32
	for {
		key, recno, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok || CompareDouble(key, maxKey) > 0 {
			break
		}
		out = append(out, recno)
	}

	return out, nil
}
