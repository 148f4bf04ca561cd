package internal

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"paygate/config"
	"paygate/entity"
	"paygate/services"
	"strconv"
)

// FileDispatcher streams paid documents from the document root. The file is the
// request path resolved under the root; the whole file is always sent.
type FileDispatcher struct {
	root        string
	contentType string
	logger      services.LogHandler
}

func NewFileDispatcher(conf *config.Config) *FileDispatcher {
	contentType := conf.Files.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &FileDispatcher{
		root:        conf.Files.Root,
		contentType: contentType,
	}
}

func (d *FileDispatcher) SetLogger(logger services.LogHandler) {
	d.logger = logger
}

func (d *FileDispatcher) Dispatch(w http.ResponseWriter, r *http.Request, resource entity.Resource) error {
	if d.root == "" {
		return newError(ErrDispatch, "dispatch "+resource.Name, fmt.Errorf("document root not set"))
	}
	name := filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))

	file, err := os.Open(name)
	if err != nil {
		return newError(ErrDispatch, "dispatch "+resource.Name, err)
	}
	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return newError(ErrDispatch, "dispatch "+resource.Name, err)
	}
	if info.IsDir() {
		return newError(ErrDispatch, "dispatch "+resource.Name, fmt.Errorf("%s is a directory", name))
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = d.contentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if !info.ModTime().IsZero() {
		w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, file)
	if err != nil && d.logger != nil {
		// headers are gone, the client sees a truncated body
		d.logger.Error(fmt.Sprintf("send %s: %d of %d bytes", resource.Name, written, info.Size()), err)
	}
	return nil
}
