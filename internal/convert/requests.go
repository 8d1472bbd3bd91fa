package convert

// RPC request shapes. REST carries the same values in the path.
type (
	// IDRequest names one record.
	IDRequest struct {
		ID string `json:"id" validate:"required,uuid"`
	}

	// ObjectUpdate patches the object ID.
	ObjectUpdate struct {
		ID     string      `json:"id" validate:"required,uuid"`
		Object ObjectPatch `json:"object"`
	}

	// UserUpdate patches the user ID.
	UserUpdate struct {
		ID   string    `json:"id" validate:"required,uuid"`
		User UserPatch `json:"user"`
	}

	// BindRequest links parent ID to child InternalObjectID.
	BindRequest struct {
		ID               string `json:"id" validate:"required,uuid"`
		InternalObjectID string `json:"internalObjectId" validate:"required,uuid"`
	}

	// TypeRequest selects objects by type.
	TypeRequest struct {
		Type string `json:"type" validate:"required"`
	}

	// TypeAliasRequest filters the neighbours of ID on type and alias.
	TypeAliasRequest struct {
		ID    string `json:"id" validate:"required,uuid"`
		Type  string `json:"type" validate:"required"`
		Alias string `json:"alias" validate:"required"`
	}

	// Empty is a request or reply without fields.
	Empty struct{}
)
