package models

// Persona 角色索引记录（personas.json），完整身份见 IDENTITY.md
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
