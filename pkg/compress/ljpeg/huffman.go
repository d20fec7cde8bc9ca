package ljpeg

import (
	"fmt"
	"math"
)

// difference categories 0..16
const numCategories = 17

// huffmanSpec is a DHT table: bits[l] codes of length l, values in code
// order
type huffmanSpec struct {
	bits   [17]int
	values []byte
}

// optimalSpec builds length limited codes from category counts following
// ITU T.81 Annex K.2. A reserved symbol keeps every real code from being
// all ones.
func optimalSpec(counts [numCategories]int) huffmanSpec {
	const reserved = numCategories
	var freq [numCategories + 1]int64
	for i, c := range counts {
		freq[i] = int64(c)
	}
	freq[reserved] = 1

	var codeSize [numCategories + 1]int
	var others [numCategories + 1]int
	for i := range others {
		others[i] = -1
	}
	for {
		c1, c2 := -1, -1
		least := int64(math.MaxInt64)
		for i, f := range freq {
			if f > 0 && f <= least {
				least, c1 = f, i
			}
		}
		least = math.MaxInt64
		for i, f := range freq {
			if f > 0 && f <= least && i != c1 {
				least, c2 = f, i
			}
		}
		if c2 < 0 {
			break
		}
		freq[c1] += freq[c2]
		freq[c2] = 0

		codeSize[c1]++
		for others[c1] >= 0 {
			c1 = others[c1]
			codeSize[c1]++
		}
		others[c1] = c2
		codeSize[c2]++
		for others[c2] >= 0 {
			c2 = others[c2]
			codeSize[c2]++
		}
	}

	var count [33]int
	for _, s := range codeSize {
		if s > 0 {
			count[s]++
		}
	}
	// limit code lengths to 16 bits
	for i := 32; i > 16; i-- {
		for count[i] > 0 {
			j := i - 2
			for count[j] == 0 {
				j--
			}
			count[i] -= 2
			count[i-1]++
			count[j+1] += 2
			count[j]--
		}
	}
	i := 16
	for count[i] == 0 {
		i--
	}
	count[i]--

	var spec huffmanSpec
	copy(spec.bits[1:], count[1:17])
	for l := 1; l <= 32; l++ {
		for s := 0; s < numCategories; s++ {
			if codeSize[s] == l {
				spec.values = append(spec.values, byte(s))
			}
		}
	}
	return spec
}

// encodeTable maps a category to its code and length
type encodeTable struct {
	code [numCategories]uint32
	size [numCategories]int
}

func (s huffmanSpec) encodeTable() encodeTable {
	var t encodeTable
	code, k := uint32(0), 0
	for l := 1; l <= 16; l++ {
		for range s.bits[l] {
			if v := s.values[k]; int(v) < numCategories {
				t.code[v], t.size[v] = code, l
			}
			code++
			k++
		}
		code <<= 1
	}
	return t
}

// decodeTable is the canonical code table of ITU T.81 F.2.2.3
type decodeTable struct {
	maxCode [18]int32
	valPtr  [17]int32
	minCode [17]int32
	values  []byte
}

func (s huffmanSpec) decodeTable() (*decodeTable, error) {
	total := 0
	for _, n := range s.bits[1:] {
		total += n
	}
	if total != len(s.values) || total == 0 || total > 256 {
		return nil, fmt.Errorf("huffman table declares %d codes for %d values", total, len(s.values))
	}
	t := &decodeTable{values: s.values}
	code, k := int32(0), int32(0)
	for l := 1; l <= 16; l++ {
		if s.bits[l] == 0 {
			t.maxCode[l] = -1
		} else {
			t.valPtr[l] = k
			t.minCode[l] = code
			code += int32(s.bits[l])
			k += int32(s.bits[l])
			t.maxCode[l] = code - 1
		}
		code <<= 1
	}
	t.maxCode[17] = math.MaxInt32
	return t, nil
}

func (t *decodeTable) decode(br *bitReader) (int, error) {
	code := int32(0)
	for l := 1; l <= 16; l++ {
		bit, err := br.readBits(1)
		if err != nil {
			return 0, err
		}
		code = code<<1 | int32(bit)
		if code <= t.maxCode[l] {
			return int(t.values[t.valPtr[l]+code-t.minCode[l]]), nil
		}
	}
	return 0, fmt.Errorf("invalid huffman code %#x", code)
}

// category is the SSSS magnitude category of a difference
func category(diff int) int {
	if diff < 0 {
		diff = -diff
	}
	n := 0
	for diff > 0 {
		n++
		diff >>= 1
	}
	return n
}

// extend turns the additional bits of a category into a signed difference
func extend(v, ssss int) int {
	if ssss == 16 {
		return 32768
	}
	if v < 1<<(ssss-1) {
		return v - (1 << ssss) + 1
	}
	return v
}
