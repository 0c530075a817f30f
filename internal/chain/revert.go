package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ExtractRevertReason pulls the human-readable revert reason out of a node
// error. ABI-encoded Error(string) payloads win over message parsing. It
// returns "" when the error carries no reason.
func ExtractRevertReason(err error) string {
	if err == nil {
		return ""
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		if reason := decodeRevertData(de.ErrorData()); reason != "" {
			return reason
		}
	}
	return revertReasonFromMessage(err.Error())
}

// ReasonOf returns the revert reason carried by err, whether it came from a
// mined receipt (*RevertError) or from a rejected call or estimate.
func ReasonOf(err error) string {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ExtractRevertReason(err)
}

func decodeRevertData(data interface{}) string {
	s, ok := data.(string)
	if !ok {
		return ""
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return ""
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return ""
	}
	return reason
}

func revertReasonFromMessage(msg string) string {
	// geth / erigon / reth: "execution reverted: <reason>"
	const geth = "execution reverted:"
	if idx := strings.Index(msg, geth); idx >= 0 {
		return strings.TrimSpace(msg[idx+len(geth):])
	}
	// hardhat / anvil: "reverted with reason string '<reason>'"
	const hardhat = "reverted with reason string '"
	if idx := strings.Index(msg, hardhat); idx >= 0 {
		rest := msg[idx+len(hardhat):]
		if end := strings.LastIndex(rest, "'"); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	return ""
}
