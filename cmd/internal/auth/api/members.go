package authapi

import (
	"errors"
	"net/http"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// fieldError renames the field of a conversion error to match the route parameter.
func fieldError(err error, field string) error {
	var ce fault.ConversionError
	if errors.As(err, &ce) {
		return ce.WithField(field)
	}
	return err
}

func pathID(r *http.Request, name string) (identity.ID, error) {
	id, err := identity.ParseID(r.PathValue(name))
	if err != nil {
		return "", err
	}
	return id, nil
}

func pathKey(r *http.Request) (identity.MemberKey, error) {
	tenant, err := pathID(r, "tenant")
	if err != nil {
		return identity.MemberKey{}, fieldError(err, "tenant_id")
	}
	principal, err := pathID(r, "principal")
	if err != nil {
		return identity.MemberKey{}, fieldError(err, "principal_id")
	}
	return identity.MemberKey{TenantID: tenant, PrincipalID: principal}, nil
}

func (h *Handler) handleMemberCreate(w http.ResponseWriter, r *http.Request) {
	tenant, err := pathID(r, "tenant")
	if err != nil {
		writeFault(w, h.log, "members.create", fieldError(err, "tenant_id"))
		return
	}
	var req memberCreateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, h.log, "members.create", err)
		return
	}

	m := identity.Membership{
		TenantID:    tenant,
		PrincipalID: req.PrincipalID,
		Title:       req.Title,
		Owner:       req.Owner,
		Roles:       req.Roles,
	}
	if _, err := h.members.Create(r.Context(), m); err != nil {
		writeFault(w, h.log, "members.create", err)
		return
	}
	h.audit(r, "members.create", "tenant_id", m.TenantID, "principal_id", m.PrincipalID)
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleMemberList(w http.ResponseWriter, r *http.Request) {
	tenant, err := pathID(r, "tenant")
	if err != nil {
		writeFault(w, h.log, "members.list", fieldError(err, "tenant_id"))
		return
	}
	list, err := h.members.ListByTenant(r.Context(), tenant)
	if err != nil {
		writeFault(w, h.log, "members.list", err)
		return
	}
	writeJSON(w, http.StatusOK, membersResponse{Members: list})
}

func (h *Handler) handlePrincipalTenants(w http.ResponseWriter, r *http.Request) {
	principal, err := pathID(r, "principal")
	if err != nil {
		writeFault(w, h.log, "members.list", fieldError(err, "principal_id"))
		return
	}
	list, err := h.members.ListByPrincipal(r.Context(), principal)
	if err != nil {
		writeFault(w, h.log, "members.list", err)
		return
	}
	writeJSON(w, http.StatusOK, membersResponse{Members: list})
}

func (h *Handler) handleMemberGet(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeFault(w, h.log, "members.read", err)
		return
	}
	m, err := h.members.Read(r.Context(), key)
	if err != nil {
		writeFault(w, h.log, "members.read", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleMemberUpdate(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeFault(w, h.log, "members.update", err)
		return
	}
	var req memberUpdateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, h.log, "members.update", err)
		return
	}

	m := identity.Membership{
		TenantID:    key.TenantID,
		PrincipalID: key.PrincipalID,
		Title:       req.Title,
		Owner:       req.Owner,
		Roles:       req.Roles,
	}
	if _, err := h.members.Update(r.Context(), m); err != nil {
		writeFault(w, h.log, "members.update", err)
		return
	}
	h.audit(r, "members.update", "tenant_id", key.TenantID, "principal_id", key.PrincipalID)
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleMemberPatch(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeFault(w, h.log, "members.patch", err)
		return
	}
	fields, err := decodePatch(w, r, h.cfg.MaxBodyBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	patch, err := identity.DecodeMembershipPatch(fields)
	if err != nil {
		writeFault(w, h.log, "members.patch", err)
		return
	}

	m, err := h.members.Patch(r.Context(), key, patch)
	if err != nil {
		writeFault(w, h.log, "members.patch", err)
		return
	}
	h.audit(r, "members.patch", "tenant_id", key.TenantID, "principal_id", key.PrincipalID)
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeFault(w, h.log, "members.delete", err)
		return
	}
	if err := h.members.Delete(r.Context(), key); err != nil {
		writeFault(w, h.log, "members.delete", err)
		return
	}
	h.audit(r, "members.delete", "tenant_id", key.TenantID, "principal_id", key.PrincipalID)
	w.WriteHeader(http.StatusNoContent)
}
