package domain

import (
	"regexp"
	"strings"
)

// AccountNumberLength is the NUBAN account number length.
const AccountNumberLength = 10

var accountNumberPattern = regexp.MustCompile(`^\d{10}$`)

var supportedBanks = []string{
	"Access Bank",
	"Citibank Nigeria",
	"Ecobank Nigeria",
	"Fidelity Bank",
	"First Bank of Nigeria",
	"First City Monument Bank",
	"Globus Bank",
	"Guaranty Trust Bank",
	"Heritage Bank",
	"Jaiz Bank",
	"Keystone Bank",
	"Kuda Bank",
	"Moniepoint Microfinance Bank",
	"OPay",
	"PalmPay",
	"Parallex Bank",
	"Polaris Bank",
	"Providus Bank",
	"Stanbic IBTC Bank",
	"Standard Chartered Bank",
	"Sterling Bank",
	"SunTrust Bank",
	"Titan Trust Bank",
	"Union Bank of Nigeria",
	"United Bank for Africa",
	"Unity Bank",
	"Wema Bank",
	"Zenith Bank",
}

// SupportedBanks returns a copy of the payout bank list.
func SupportedBanks() []string {
	out := make([]string, len(supportedBanks))
	copy(out, supportedBanks)
	return out
}

// IsSupportedBank matches case-insensitively against the bank list.
func IsSupportedBank(name string) bool {
	name = strings.TrimSpace(name)
	for _, bank := range supportedBanks {
		if strings.EqualFold(bank, name) {
			return true
		}
	}
	return false
}

func ValidAccountNumber(number string) bool {
	return accountNumberPattern.MatchString(strings.TrimSpace(number))
}
