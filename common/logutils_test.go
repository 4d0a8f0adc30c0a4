package common_test

import (
	"bytes"
	"encoding/json"
	"protocolo/common"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("ConfigureLogger", func() {
	AfterEach(func() {
		common.ConfigureLogger(&bytes.Buffer{}, "info", "text")
	})

	It("should write json entries with the service name", func() {
		buf := &bytes.Buffer{}
		common.ConfigureLogger(buf, "debug", "json")
		logrus.WithField("protocolId", "100").Debug("hello")

		entry := map[string]interface{}{}
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
		Expect(entry["msg"]).To(Equal("hello"))
		Expect(entry["serviceName"]).To(Equal("protocolo"))
		Expect(entry["protocolId"]).To(Equal("100"))
	})

	It("should fall back to info level on unknown level", func() {
		buf := &bytes.Buffer{}
		common.ConfigureLogger(buf, "verbose", "text")
		Expect(logrus.GetLevel()).To(Equal(logrus.InfoLevel))
		logrus.Debug("hidden")
		Expect(buf.Len()).To(BeZero())
	})

	It("should pick json formatter for non terminal writers", func() {
		common.ConfigureLogger(&bytes.Buffer{}, "info", "")
		_, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("StringReader", func() {
	It("should be able to build a bytes.Reader from a string", func() {
		str := "test string"
		reader := common.StringReader(str)
		buf := make([]byte, len(str))
		n, err := reader.Read(buf)
		Expect(n).To(Equal(len(str)))
		Expect(err).To(BeNil())
		Expect(string(buf)).To(Equal(str))
	})
})
