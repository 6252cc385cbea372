package provider

import (
	"strconv"
	"strings"

	ipp "github.com/phin1x/go-ipp"
)

// IPP option attributes exposed to the submission form. Each entry pairs a
// "-supported" attribute with its "-default" counterpart.
var optionAttributes = []struct {
	keyword string
	text    string
	group   string
}{
	{"media", "Paper Size", "media"},
	{"sides", "Double-Sided Printing", "general"},
	{"print-color-mode", "Color Mode", "general"},
	{"print-quality", "Print Quality", "general"},
	{"output-bin", "Output Tray", "media"},
}

var optionGroupNames = map[string]string{
	"general": "General",
	"media":   "Media",
}

// Friendly labels for choice values whose IPP keywords are unreadable.
var friendlyChoiceNames = map[string]map[string]string{
	"sides": {
		"one-sided":            "Off (Single-sided)",
		"two-sided-long-edge":  "Long Edge (Standard)",
		"two-sided-short-edge": "Short Edge (Flip)",
	},
	"print-color-mode": {
		"color":      "Color",
		"monochrome": "Black & White",
		"auto":       "Automatic",
	},
	"print-quality": {
		"3": "Draft",
		"4": "Normal",
		"5": "High",
	},
}

// PrinterOptions builds the configurable option groups for one printer from
// its supported/default IPP attributes.
func (c *CUPSClient) PrinterOptions(name string) ([]OptionGroup, error) {
	if _, err := c.Printer(name); err != nil {
		return nil, err
	}

	requested := make([]string, 0, len(optionAttributes)*2)
	for _, oa := range optionAttributes {
		requested = append(requested, oa.keyword+"-supported", oa.keyword+"-default")
	}

	attrs, err := c.ipp.GetPrinterAttributes(name, requested)
	if err != nil {
		return nil, wrapProviderErr("get printer options", err)
	}

	grouped := make(map[string][]PrintOption)
	for _, oa := range optionAttributes {
		supported := attrValues(attrs, oa.keyword+"-supported")
		if len(supported) == 0 {
			continue
		}

		choices := make([]OptionChoice, 0, len(supported))
		for _, value := range supported {
			choices = append(choices, OptionChoice{
				Value: value,
				Text:  choiceText(oa.keyword, value),
			})
		}

		grouped[oa.group] = append(grouped[oa.group], PrintOption{
			Keyword: oa.keyword,
			Text:    oa.text,
			Default: firstValue(attrs, oa.keyword+"-default"),
			Choices: choices,
		})
	}

	groups := make([]OptionGroup, 0, len(grouped))
	for _, key := range []string{"general", "media"} {
		if opts, ok := grouped[key]; ok {
			groups = append(groups, OptionGroup{
				Name:    key,
				Text:    optionGroupNames[key],
				Options: opts,
			})
		}
	}

	return groups, nil
}

// attrValues stringifies every value of one attribute. Keyword attributes
// arrive as strings, enum attributes (print-quality) as ints.
func attrValues(attrs ipp.Attributes, name string) []string {
	vals, ok := attrs[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		switch t := v.Value.(type) {
		case string:
			out = append(out, t)
		case int:
			out = append(out, strconv.Itoa(t))
		}
	}
	return out
}

func firstValue(attrs ipp.Attributes, name string) string {
	if vals := attrValues(attrs, name); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func choiceText(keyword, value string) string {
	if m, ok := friendlyChoiceNames[keyword]; ok {
		if text, ok := m[value]; ok {
			return text
		}
	}
	// Fall back to a title-cased form of the IPP keyword.
	text := strings.ReplaceAll(value, "-", " ")
	if text == "" {
		return value
	}
	return strings.ToUpper(text[:1]) + text[1:]
}
