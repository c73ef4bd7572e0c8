package gateway

import (
	"bytes"
	"mime/multipart"
	"net/textproto"

	"github.com/saiset-co/sai-feed/types"
)

type multipartField struct {
	name  string
	value string
}

func encodeMultipart(fields []multipartField, fileField string, file *types.FileUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", types.WrapError(err, "failed to write form field "+field.name)
		}
	}

	if file != nil {
		if len(file.Data) == 0 {
			return nil, "", types.Errorf(types.ErrFileIsEmpty, "field %s", fileField)
		}

		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", multipartDisposition(fileField, file.Name))
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", types.WrapError(err, "failed to create form file "+fileField)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", types.WrapError(err, "failed to write form file "+fileField)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", types.WrapError(err, "failed to finish multipart body")
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func multipartDisposition(field, filename string) string {
	return "form-data; name=" + quoteParam(field) + "; filename=" + quoteParam(filename)
}

func quoteParam(value string) string {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range value {
		if r == '"' || r == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	buf.WriteByte('"')
	return buf.String()
}
