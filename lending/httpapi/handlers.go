package httpapi

import (
	"net/http"
)

func (a *API) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, homeResponse{envelope: ok(msgBackendRunning), Status: msgBackendRunning})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Login(r.Context(), req.StudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromLogin(result))
}

func (a *API) smartRoute(w http.ResponseWriter, r *http.Request) {
	var req smartRouteRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	reply, err := a.router.Route(r.Context(), req.StudentID, req.Text)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromReply(reply))
}

func (a *API) availableBooks(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.AvailableBooks(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromAvailableBooks(result))
}

func (a *API) checkBook(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Check(r.Context(), req.Subject)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromCheck(result))
}

func (a *API) recommendBooks(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Recommend(r.Context(), req.Subject)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromRecommendation(result))
}

func (a *API) lendByTitle(w http.ResponseWriter, r *http.Request) {
	var req lendRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Borrow(r.Context(), req.StudentID, req.Title)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromBorrow(result))
}

func (a *API) activeBorrows(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.ListActiveLoans(r.Context(), req.StudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromActiveLoans(result))
}

func (a *API) returnBook(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.ReturnLoan(r.Context(), req.TransactionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromReturn(result))
}

func (a *API) studentStatus(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Status(r.Context(), req.StudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromStatus(result))
}

func (a *API) searchBooks(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Search(r.Context(), req.Subject, req.Tag)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromSearch(result))
}

func (a *API) overdueStatus(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.Overdue(r.Context(), req.StudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromOverdue(result))
}
