// Package refcode issues point-of-sale barcode references for charges.
package refcode

import (
	"errors"

	"github.com/bwmarrin/snowflake"

	billing "club-ledger/internal/billing/domain"
)

// Issuer prefixes snowflake ids with the charge kind letter.
type Issuer struct {
	node *snowflake.Node
}

// NewIssuer constructs an issuer for a node id in [0, 1023]. Each process
// writing charges needs its own node id.
func NewIssuer(nodeID int64) (*Issuer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.New("refcode: " + err.Error())
	}
	return &Issuer{node: node}, nil
}

// Next returns a new reference such as "C1790123456789012345".
func (i *Issuer) Next(kind billing.ChargeKind) string {
	return billing.ReferencePrefix(kind) + i.node.Generate().String()
}
