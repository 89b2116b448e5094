package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"perpeditions/native/editions"
	"perpeditions/observability"
)

type contractConfigParam struct {
	TotalTokensCap string `json:"totalTokensCap,omitempty"`
	BaseURI        string `json:"baseURI"`
	FundsRecipient string `json:"fundsRecipient"`
	WindowDuration int64  `json:"windowDuration"`
}

type setContractConfigParams struct {
	Tenant string              `json:"tenant"`
	Caller string              `json:"caller"`
	Config contractConfigParam `json:"config"`
}

type editionTermsParam struct {
	MaxSupply           uint64 `json:"maxSupply"`
	MaxTokensPerAddress uint64 `json:"maxTokensPerAddress"`
	PricePerToken       string `json:"pricePerToken"`
}

type createTokenParams struct {
	Tenant    string            `json:"tenant"`
	Caller    string            `json:"caller"`
	Terms     editionTermsParam `json:"terms"`
	ExtraData string            `json:"extraData,omitempty"`
}

type mintParams struct {
	Tenant    string `json:"tenant"`
	EditionID uint64 `json:"editionId"`
	Quantity  uint64 `json:"quantity"`
	Minter    string `json:"minter"`
	Payment   string `json:"payment"`
}

type tenantParams struct {
	Tenant string `json:"tenant"`
}

type editionParams struct {
	Tenant    string `json:"tenant"`
	EditionID uint64 `json:"editionId"`
}

type mintedParams struct {
	Tenant    string `json:"tenant"`
	EditionID uint64 `json:"editionId"`
	Address   string `json:"address"`
}

type registerContractParams struct {
	Tenant string `json:"tenant"`
	Owner  string `json:"owner"`
}

type creditParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

type contractConfigResult struct {
	Tenant         string `json:"tenant"`
	TotalTokensCap string `json:"totalTokensCap"`
	BaseURI        string `json:"baseURI"`
	FundsRecipient string `json:"fundsRecipient"`
	WindowDuration int64  `json:"windowDuration"`
}

type editionResult struct {
	Tenant              string `json:"tenant"`
	EditionID           uint64 `json:"editionId"`
	CreatedAt           int64  `json:"createdAt"`
	WindowDuration      int64  `json:"windowDuration"`
	MaxSupply           uint64 `json:"maxSupply"`
	MaxTokensPerAddress uint64 `json:"maxTokensPerAddress"`
	PricePerToken       string `json:"pricePerToken"`
	TotalMinted         uint64 `json:"totalMinted"`
	Open                bool   `json:"open"`
	URI                 string `json:"uri,omitempty"`
}

type mintResult struct {
	Tenant          string `json:"tenant"`
	EditionID       uint64 `json:"editionId"`
	Minter          string `json:"minter"`
	Quantity        uint64 `json:"quantity"`
	TotalMinted     uint64 `json:"totalMinted"`
	MintedByAddress uint64 `json:"mintedByAddress"`
	Payment         string `json:"payment"`
	Fee             string `json:"fee"`
	Net             string `json:"net"`
}

type mintedResult struct {
	Tenant    string `json:"tenant"`
	EditionID uint64 `json:"editionId"`
	Address   string `json:"address"`
	Minted    uint64 `json:"minted"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func decodeAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return addr, fmt.Errorf("invalid address %q", raw)
	}
	copy(addr[:], common.HexToAddress(trimmed).Bytes())
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func formatConfig(tenant string, cfg *editions.ContractConfig) contractConfigResult {
	result := contractConfigResult{Tenant: tenant}
	if cfg == nil {
		return result
	}
	result.TotalTokensCap = bigString(cfg.TotalTokensCap)
	result.BaseURI = cfg.BaseURI
	result.FundsRecipient = formatAddress(cfg.FundsRecipient)
	result.WindowDuration = cfg.WindowDuration
	return result
}

func (s *Server) formatEdition(tenant [20]byte, record *editions.EditionRecord, now int64) editionResult {
	result := editionResult{Tenant: formatAddress(tenant)}
	if record == nil {
		return result
	}
	result.EditionID = record.EditionID
	result.CreatedAt = record.CreatedAt
	result.WindowDuration = record.WindowDuration
	result.MaxSupply = record.MaxSupply
	result.MaxTokensPerAddress = record.MaxTokensPerAddress
	result.PricePerToken = bigString(record.PricePerToken)
	result.TotalMinted = record.TotalMinted
	result.Open = record.Open(now)
	if uri, err := s.ledger.TokenURI(tenant, record.EditionID); err == nil {
		result.URI = uri
	}
	return result
}

func (s *Server) handleSetContractConfig(w http.ResponseWriter, req *RPCRequest) {
	var params setContractConfigParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	recipient, err := decodeAddress(params.Config.FundsRecipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid funds recipient", err.Error())
		return
	}
	tokenCap, err := parseAmount(params.Config.TotalTokensCap)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token cap", err.Error())
		return
	}
	cfg := editions.ContractConfig{
		TotalTokensCap: tokenCap,
		BaseURI:        params.Config.BaseURI,
		FundsRecipient: recipient,
		WindowDuration: params.Config.WindowDuration,
	}
	if err := s.engine.SetContractConfig(tenant, caller, cfg); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to set contract config", err.Error())
		return
	}
	writeResult(w, req.ID, formatConfig(params.Tenant, &cfg))
}

func (s *Server) handleCreateToken(w http.ResponseWriter, req *RPCRequest) {
	var params createTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	price, err := parseAmount(params.Terms.PricePerToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid price", err.Error())
		return
	}
	terms := editions.EditionTerms{
		MaxSupply:           params.Terms.MaxSupply,
		MaxTokensPerAddress: params.Terms.MaxTokensPerAddress,
		PricePerToken:       price,
	}
	// The ledger gates creation dispatch on the module's operator bit the same
	// way it gates mints.
	granted, err := s.ledger.HasPermission(tenant, s.module, editions.PermissionMint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "permission lookup failed", err.Error())
		return
	}
	if !granted {
		writeError(w, http.StatusForbidden, req.ID, codeServerError, "module not granted mint permission", nil)
		return
	}
	record, err := s.engine.CreateToken(tenant, caller, terms, []byte(params.ExtraData))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to create token", err.Error())
		return
	}
	writeResult(w, req.ID, s.formatEdition(tenant, record, record.CreatedAt))
}

func (s *Server) handleMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	minter, err := decodeAddress(params.Minter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid minter address", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	// The ledger checks the module's operator bit before routing a mint into
	// the sale engine; a missing grant is a deployment misconfiguration.
	granted, err := s.ledger.HasPermission(tenant, s.module, editions.PermissionMint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "permission lookup failed", err.Error())
		return
	}
	if !granted {
		writeError(w, http.StatusForbidden, req.ID, codeServerError, "module not granted mint permission", nil)
		return
	}
	receipt, err := s.engine.ValidateAndRecord(tenant, params.EditionID, params.Quantity, minter, payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to mint", err.Error())
		return
	}
	if receipt.Fee != nil && receipt.Fee.Sign() > 0 {
		observability.SaleMetrics().RecordFeeRouted()
	}
	writeResult(w, req.ID, mintResult{
		Tenant:          params.Tenant,
		EditionID:       receipt.EditionID,
		Minter:          params.Minter,
		Quantity:        receipt.Quantity,
		TotalMinted:     receipt.TotalMinted,
		MintedByAddress: receipt.MintedByAddress,
		Payment:         bigString(receipt.Payment),
		Fee:             bigString(receipt.Fee),
		Net:             bigString(receipt.Net),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, req *RPCRequest) {
	var params tenantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	cfg, ok, err := s.engine.ContractConfig(tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to load config", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "contract not configured", nil)
		return
	}
	writeResult(w, req.ID, formatConfig(params.Tenant, cfg))
}

func (s *Server) handleGetEdition(w http.ResponseWriter, req *RPCRequest) {
	var params editionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	record, ok, err := s.engine.Edition(tenant, params.EditionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to load edition", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "unknown edition", nil)
		return
	}
	writeResult(w, req.ID, s.formatEdition(tenant, record, s.engine.Now()))
}

func (s *Server) handleGetMinted(w http.ResponseWriter, req *RPCRequest) {
	var params mintedParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	addr, err := decodeAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	minted, err := s.engine.MintedBy(tenant, params.EditionID, addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to load mint counter", err.Error())
		return
	}
	writeResult(w, req.ID, mintedResult{
		Tenant:    params.Tenant,
		EditionID: params.EditionID,
		Address:   params.Address,
		Minted:    minted,
	})
}

func (s *Server) handleRegisterContract(w http.ResponseWriter, req *RPCRequest) {
	var params registerContractParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tenant, err := decodeAddress(params.Tenant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tenant address", err.Error())
		return
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	if err := s.ledger.RegisterContract(tenant, owner); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to register contract", err.Error())
		return
	}
	if err := s.ledger.AddPermission(tenant, s.module, editions.PermissionMint); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to grant mint permission", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{
		"tenant": params.Tenant,
		"owner":  params.Owner,
	})
}

func (s *Server) handleCredit(w http.ResponseWriter, req *RPCRequest) {
	var params creditParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := decodeAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.ledger.Credit(addr, amount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to credit account", err.Error())
		return
	}
	balance, err := s.ledger.BalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Balance: bigString(balance)})
}

func (s *Server) handleBalance(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := decodeAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	balance, err := s.ledger.BalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Balance: bigString(balance)})
}
