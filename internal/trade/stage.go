// Package trade orchestrates the order pipeline: network check,
// balance check, credential linking, wallet provisioning, signing and
// submission, exposed as an explicit stage machine for UI consumption.
package trade

// Stage is the orchestration state of one trade attempt. Transitions
// are linear; error is reachable from every stage.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageSwitchingNetwork  Stage = "switching-network"
	StageCheckingBalance   Stage = "checking-balance"
	StageLinkingWallet     Stage = "linking-wallet"
	StageDeployingSafe     Stage = "deploying-safe"
	StageSettingAllowances Stage = "setting-allowances"
	StageSigningOrder      Stage = "signing-order"
	StageSubmittingOrder   Stage = "submitting-order"
	StageCompleted         Stage = "completed"
	StageError             Stage = "error"
)

// Message is the human-readable progress text for the stage.
func (s Stage) Message() string {
	switch s {
	case StageIdle:
		return ""
	case StageSwitchingNetwork:
		return "Switching network..."
	case StageCheckingBalance:
		return "Checking balance..."
	case StageLinkingWallet:
		return "Linking wallet to exchange..."
	case StageDeployingSafe:
		return "Setting up your trading wallet..."
	case StageSettingAllowances:
		return "Approving tokens..."
	case StageSigningOrder:
		return "Waiting for signature..."
	case StageSubmittingOrder:
		return "Submitting order..."
	case StageCompleted:
		return "Order placed"
	case StageError:
		return "Something went wrong"
	}
	return string(s)
}

// Terminal reports whether the stage auto-resets to idle.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Observer receives every stage transition with its display message.
// The error stage carries the classified error text instead of the
// generic message.
type Observer func(stage Stage, message string)
