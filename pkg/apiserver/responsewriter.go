package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/sirupsen/logrus"
)

func writeError(w http.ResponseWriter, httpStatus int, err error) {
	logrus.Debugf("got a response error: %v", err)
	o := model.ErrorResponse{
		Status:  httpStatus,
		Message: err.Error(),
	}
	res, _ := json.Marshal(o)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(res)
}

func writeJSON(w http.ResponseWriter, httpStatus int, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(res)
}
