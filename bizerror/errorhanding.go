package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"protocolo/common"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = fmt.Errorf("%v", ret)
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	var bizErr BizError
	if errors.As(genericErr, &bizErr) {
		respond := bizErr.Respond()
		if respond.Status >= http.StatusInternalServerError {
			logrus.Error(err)
		} else {
			logrus.Info(err)
		}
		var tooSoon *ErrTooSoon
		if errors.As(genericErr, &tooSoon) {
			c.Header("Retry-After", strconv.Itoa(tooSoon.RetryAfterSeconds()))
		}
		c.JSON(respond.Status, &common.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request:  io.EOF (no body).
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	// bad request: json syntax Error
	var syntaxErr *json.SyntaxError
	if errors.As(genericErr, &syntaxErr) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	// validation failed
	var validationErr validator.ValidationErrors
	if errors.As(genericErr, &validationErr) {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	if errors.Is(genericErr, ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, &common.ErrorBody{Code: CodeUnauthenticated, Message: "unauthenticated"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrConflict) {
		c.JSON(http.StatusConflict, &common.ErrorBody{Code: CodeConflict, Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrReopenDisabled) {
		c.JSON(http.StatusForbidden, &common.ErrorBody{Code: CodeReopenDisabled, Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrNotConcluded) {
		c.JSON(http.StatusConflict, &common.ErrorBody{Code: CodeNotConcluded, Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, gorm.ErrRecordNotFound) || errors.Is(genericErr, ErrNotFound) {
		c.JSON(http.StatusNotFound, &common.ErrorBody{Code: CodeNotFound, Message: "record not found"})
		c.Abort()
		return
	}

	logrus.Error(err)
	c.JSON(http.StatusInternalServerError, &common.ErrorBody{Code: CodeInternalServerError, Message: err.Error()})
	c.Abort()
}
