package numbering

import (
	"strconv"
	"strings"
)

// 编号格式
const (
	FormatDecimal     = "decimal"
	FormatDecimalZero = "decimalZero"
	FormatLowerLetter = "lowerLetter"
	FormatUpperLetter = "upperLetter"
	FormatLowerRoman  = "lowerRoman"
	FormatUpperRoman  = "upperRoman"
	FormatBullet      = "bullet"
	FormatNone        = "none"
)

var romanPairs = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// UpperRoman 将正整数格式化为大写罗马数字
func UpperRoman(n int) string {
	if n <= 0 {
		return strconv.Itoa(n)
	}
	var sb strings.Builder
	for _, p := range romanPairs {
		for n >= p.value {
			sb.WriteString(p.symbol)
			n -= p.value
		}
	}
	return sb.String()
}

// LowerRoman 将正整数格式化为小写罗马数字
func LowerRoman(n int) string {
	return strings.ToLower(UpperRoman(n))
}

// UpperLetter 按 Word 的方式格式化字母编号：A..Z, AA..ZZ, AAA..
func UpperLetter(n int) string {
	if n <= 0 {
		return strconv.Itoa(n)
	}
	letter := byte('A' + (n-1)%26)
	return strings.Repeat(string(letter), (n-1)/26+1)
}

// LowerLetter 小写字母编号
func LowerLetter(n int) string {
	return strings.ToLower(UpperLetter(n))
}

// Format 按 numFmt 格式化计数值
// bullet 与 none 不产生数字文本，未知格式按十进制处理
func Format(numFmt string, n int) string {
	switch numFmt {
	case FormatLowerLetter:
		return LowerLetter(n)
	case FormatUpperLetter:
		return UpperLetter(n)
	case FormatLowerRoman:
		return LowerRoman(n)
	case FormatUpperRoman:
		return UpperRoman(n)
	case FormatDecimalZero:
		if n >= 0 && n < 10 {
			return "0" + strconv.Itoa(n)
		}
		return strconv.Itoa(n)
	case FormatBullet, FormatNone:
		return ""
	default:
		return strconv.Itoa(n)
	}
}
