package util

import (
	"regexp"
	"strings"
)

// Italian codice fiscale: 6 letters, 2 digits, 1 letter, 2 digits,
// 1 letter, 3 digits, 1 control letter.
var (
	reFiscalCode     = regexp.MustCompile(`\b([A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z])\b`)
	reFiscalCodeFull = regexp.MustCompile(`^[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]$`)
)

var oddCharValues = map[byte]int{
	'0': 1, '1': 0, '2': 5, '3': 7, '4': 9, '5': 13, '6': 15, '7': 17, '8': 19, '9': 21,
	'A': 1, 'B': 0, 'C': 5, 'D': 7, 'E': 9, 'F': 13, 'G': 15, 'H': 17, 'I': 19, 'J': 21,
	'K': 2, 'L': 4, 'M': 18, 'N': 20, 'O': 11, 'P': 3, 'Q': 6, 'R': 8, 'S': 12, 'T': 14,
	'U': 16, 'V': 10, 'W': 22, 'X': 25, 'Y': 24, 'Z': 23,
}

// IsFiscalCodeShaped reports whether input matches the 16-character
// pattern. This is the gate for treating a token as a fiscal code.
func IsFiscalCodeShaped(input string) bool {
	return reFiscalCodeFull.MatchString(strings.ToUpper(strings.TrimSpace(input)))
}

// FiscalCodeChecksumOK verifies the control letter. Shape-valid codes
// with a wrong control letter are still usable as match keys; the
// checksum only breaks ties between multiple occurrences in a text.
func FiscalCodeChecksumOK(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !reFiscalCodeFull.MatchString(code) {
		return false
	}

	sum := 0
	for i := 0; i < 15; i++ {
		c := code[i]
		if (i+1)%2 == 1 {
			sum += oddCharValues[c]
		} else {
			if c >= '0' && c <= '9' {
				sum += int(c - '0')
			} else {
				sum += int(c - 'A')
			}
		}
	}
	return code[15] == byte('A'+sum%26)
}

// FindFiscalCodes returns every shape-valid code in text, in order of
// appearance.
func FindFiscalCodes(text string) []string {
	return reFiscalCode.FindAllString(strings.ToUpper(text), -1)
}
