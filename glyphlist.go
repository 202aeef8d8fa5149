// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package reader

// nameToRune maps Adobe glyph names to Unicode scalar values. It is the
// portion of the Adobe Glyph List covering the four base encodings and the
// names commonly seen in Differences arrays; names outside it fall back to
// uniXXXX parsing in glyphToRune.
var nameToRune = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@',
	"A": 'A', "B": 'B', "C": 'C', "D": 'D', "E": 'E', "F": 'F', "G": 'G',
	"H": 'H', "I": 'I', "J": 'J', "K": 'K', "L": 'L', "M": 'M', "N": 'N',
	"O": 'O', "P": 'P', "Q": 'Q', "R": 'R', "S": 'S', "T": 'T', "U": 'U',
	"V": 'V', "W": 'W', "X": 'X', "Y": 'Y', "Z": 'Z',
	"bracketleft": '[', "backslash": '\\', "bracketright": ']',
	"asciicircum": '^', "underscore": '_', "grave": '`',
	"a": 'a', "b": 'b', "c": 'c', "d": 'd', "e": 'e', "f": 'f', "g": 'g',
	"h": 'h', "i": 'i', "j": 'j', "k": 'k', "l": 'l', "m": 'm', "n": 'n',
	"o": 'o', "p": 'p', "q": 'q', "r": 'r', "s": 's', "t": 't', "u": 'u',
	"v": 'v', "w": 'w', "x": 'x', "y": 'y', "z": 'z',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',

	"quoteright": '’', "quoteleft": '‘', "quotedblleft": '“',
	"quotedblright": '”', "quotesinglbase": '‚', "quotedblbase": '„',
	"guillemotleft": '«', "guillemotright": '»', "guilsinglleft": '‹',
	"guilsinglright": '›',
	"endash": '–', "emdash": '—', "bullet": '•', "ellipsis": '…',
	"dagger": '†', "daggerdbl": '‡', "perthousand": '‰', "minus": '−',
	"fraction": '⁄', "florin": 'ƒ', "fi": 'ﬁ', "fl": 'ﬂ',
	"trademark": '™', "registered": '®', "copyright": '©', "degree": '°',
	"plusminus": '±', "multiply": '×', "divide": '÷', "logicalnot": '¬',
	"mu": 'µ', "paragraph": '¶', "section": '§', "periodcentered": '·',
	"dotlessi": 'ı', "Euro": '€',

	"exclamdown": '¡', "cent": '¢', "sterling": '£', "currency": '¤',
	"yen": '¥', "brokenbar": '¦', "dieresis": '¨', "ordfeminine": 'ª',
	"macron": '¯', "acute": '´', "cedilla": '¸', "ordmasculine": 'º',
	"onequarter": '¼', "onehalf": '½', "threequarters": '¾',
	"questiondown": '¿', "onesuperior": '¹', "twosuperior": '²',
	"threesuperior": '³',
	"circumflex": 'ˆ', "caron": 'ˇ', "breve": '˘', "dotaccent": '˙',
	"ring": '˚', "ogonek": '˛', "tilde": '˜', "hungarumlaut": '˝',

	"Agrave": 'À', "Aacute": 'Á', "Acircumflex": 'Â', "Atilde": 'Ã',
	"Adieresis": 'Ä', "Aring": 'Å', "AE": 'Æ', "Ccedilla": 'Ç',
	"Egrave": 'È', "Eacute": 'É', "Ecircumflex": 'Ê', "Edieresis": 'Ë',
	"Igrave": 'Ì', "Iacute": 'Í', "Icircumflex": 'Î', "Idieresis": 'Ï',
	"Eth": 'Ð', "Ntilde": 'Ñ', "Ograve": 'Ò', "Oacute": 'Ó',
	"Ocircumflex": 'Ô', "Otilde": 'Õ', "Odieresis": 'Ö', "Oslash": 'Ø',
	"Ugrave": 'Ù', "Uacute": 'Ú', "Ucircumflex": 'Û', "Udieresis": 'Ü',
	"Yacute": 'Ý', "Thorn": 'Þ', "germandbls": 'ß',
	"agrave": 'à', "aacute": 'á', "acircumflex": 'â', "atilde": 'ã',
	"adieresis": 'ä', "aring": 'å', "ae": 'æ', "ccedilla": 'ç',
	"egrave": 'è', "eacute": 'é', "ecircumflex": 'ê', "edieresis": 'ë',
	"igrave": 'ì', "iacute": 'í', "icircumflex": 'î', "idieresis": 'ï',
	"eth": 'ð', "ntilde": 'ñ', "ograve": 'ò', "oacute": 'ó',
	"ocircumflex": 'ô', "otilde": 'õ', "odieresis": 'ö', "oslash": 'ø',
	"ugrave": 'ù', "uacute": 'ú', "ucircumflex": 'û', "udieresis": 'ü',
	"yacute": 'ý', "thorn": 'þ', "ydieresis": 'ÿ', "Ydieresis": 'Ÿ',
	"Lslash": 'Ł', "lslash": 'ł', "OE": 'Œ', "oe": 'œ',
	"Scaron": 'Š', "scaron": 'š', "Zcaron": 'Ž', "zcaron": 'ž',
}

// glyphToRune resolves a glyph name to a Unicode scalar: first through the
// glyph list, then through the uniXXXX / uXXXX[XX] AGL conventions.
func glyphToRune(glyph string) (rune, bool) {
	if r, ok := nameToRune[glyph]; ok {
		return r, true
	}
	hex := ""
	if len(glyph) == 7 && glyph[:3] == "uni" {
		hex = glyph[3:]
	} else if (len(glyph) == 5 || len(glyph) == 7) && glyph[0] == 'u' {
		hex = glyph[1:]
	}
	if hex != "" {
		var x rune
		for i := 0; i < len(hex); i++ {
			d := unhex(hex[i])
			if d < 0 {
				return 0, false
			}
			x = x<<4 | rune(d)
		}
		return x, true
	}
	return 0, false
}
