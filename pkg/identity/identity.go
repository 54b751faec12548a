package identity

import (
	"errors"
	"fmt"
	"os"

	"github.com/benmeehan/geo-attendance/pkg/file"
	"github.com/google/uuid"
)

// Identity holds the node's persistent identifier and descriptive metadata.
type Identity struct {
	ID       string `json:"node_id,omitempty"`
	Name     string `json:"node_name,omitempty"`
	Location string `json:"location,omitempty"` // free text, e.g. building and room
}

// NodeInfoInterface defines methods for managing node identity.
type NodeInfoInterface interface {
	LoadNodeInfo() error
	EnsureNodeID() (string, error)
	GetNodeID() string
	GetNodeIdentity() *Identity
}

// NodeInfo manages the node identity and its associated file operations.
type NodeInfo struct {
	NodeInfoFile string
	Identity     Identity
	fileOps      file.FileOperations
	newID        func() string
}

// NewNodeInfo initializes a new NodeInfo instance.
func NewNodeInfo(filePath string, fileOps file.FileOperations) *NodeInfo {
	return &NodeInfo{
		NodeInfoFile: filePath,
		fileOps:      fileOps,
		newID:        uuid.NewString,
	}
}

// LoadNodeInfo reads the identity file. A missing file leaves an empty identity.
func (n *NodeInfo) LoadNodeInfo() error {
	err := n.fileOps.ReadJsonFile(n.NodeInfoFile, &n.Identity)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			n.Identity = Identity{}
			return nil
		}
		return fmt.Errorf("failed to read node identity: %w", err)
	}
	return nil
}

// EnsureNodeID loads the identity and, when it carries no ID yet, generates
// one and writes it back so that the node keeps it across restarts.
func (n *NodeInfo) EnsureNodeID() (string, error) {
	if err := n.LoadNodeInfo(); err != nil {
		return "", err
	}
	if n.Identity.ID != "" {
		return n.Identity.ID, nil
	}

	n.Identity.ID = n.newID()
	if err := n.fileOps.WriteJsonFile(n.NodeInfoFile, n.Identity); err != nil {
		return "", fmt.Errorf("failed to save node identity: %w", err)
	}
	return n.Identity.ID, nil
}

// GetNodeIdentity returns the current node Identity.
func (n *NodeInfo) GetNodeIdentity() *Identity {
	return &n.Identity
}

// GetNodeID returns the current node ID.
func (n *NodeInfo) GetNodeID() string {
	return n.Identity.ID
}
