/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package auth

import (
	"regexp"
	"strings"
)

// Supported wallet chains.
const (
	ChainSolana   = "solana"
	ChainEthereum = "ethereum"
)

// Device types.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// Risk scores.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// NewWalletMaxAgeDays is the age below which a wallet counts as new.
const NewWalletMaxAgeDays = 7

// LowBalanceThreshold marks nearly empty wallets.
const LowBalanceThreshold = 0.01

var mobileUARegExp = regexp.MustCompile(`(?i)mobile|android|iphone|ipad|tablet`)

// Device describes the client that signed in.
type Device struct {
	Type    string `json:"deviceType"`
	Browser string `json:"browser"`
}

// DeviceInfo classifies a User-Agent header.
func DeviceInfo(userAgent string) Device {
	if userAgent == "" {
		return Device{Type: DeviceUnknown, Browser: DeviceUnknown}
	}
	d := Device{Type: DeviceDesktop, Browser: DeviceUnknown}
	if mobileUARegExp.MatchString(userAgent) {
		d.Type = DeviceMobile
	}
	// Edge and Chrome both announce Chrome, Chrome and Safari both announce Safari.
	switch {
	case strings.Contains(userAgent, "Edg"):
		d.Browser = "Edge"
	case strings.Contains(userAgent, "Chrome"):
		d.Browser = "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		d.Browser = "Firefox"
	case strings.Contains(userAgent, "Safari"):
		d.Browser = "Safari"
	}
	return d
}

// WalletActivity is on-chain data a client may report about the wallet.
type WalletActivity struct {
	AgeDays     *int     `json:"walletAgeDays,omitempty"`
	HasActivity *bool    `json:"hasActivity,omitempty"`
	Balance     *float64 `json:"balance,omitempty"`
}

// RiskAssessment is the outcome of AssessRisk.
type RiskAssessment struct {
	IsNewWallet bool   `json:"isNewWallet"`
	RiskScore   string `json:"riskScore"`
}

// AssessRisk scores a wallet. Unknown age counts as not new, unknown balance is ignored.
func AssessRisk(walletAgeDays *int, hasActivity bool, balance *float64) RiskAssessment {
	isNew := walletAgeDays != nil && *walletAgeDays < NewWalletMaxAgeDays

	score := RiskLow
	switch {
	case isNew && !hasActivity:
		score = RiskHigh
	case isNew || !hasActivity:
		score = RiskMedium
	case balance != nil && *balance < LowBalanceThreshold:
		score = RiskMedium
	}
	return RiskAssessment{IsNewWallet: isNew, RiskScore: score}
}

// Assess scores the reported activity. Unreported activity counts as active.
func (a WalletActivity) Assess() RiskAssessment {
	return AssessRisk(a.AgeDays, a.HasActivity == nil || *a.HasActivity, a.Balance)
}
