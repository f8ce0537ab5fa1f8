/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submitter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/acronis/go-crptapi/crpt"
)

// Job file extensions.
const (
	DocumentFileExt  = ".json"
	SignatureFileExt = ".sig"
)

// Job is a single document waiting for submission.
type Job struct {
	// Name is the document file name without extension.
	Name string

	// DocumentPath and SignaturePath are empty for jobs not loaded from files.
	// SignaturePath is empty when there is no signature file.
	DocumentPath  string
	SignaturePath string

	Document  *crpt.Document
	Signature string
}

// LoadJob reads a document from the .json file and its signature from the .sig file with the same name.
// The signature file is optional.
func LoadJob(documentPath string) (*Job, error) {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc crpt.Document
	if err = dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document file %s: %w", documentPath, err)
	}

	name := strings.TrimSuffix(filepath.Base(documentPath), DocumentFileExt)
	job := &Job{Name: name, DocumentPath: documentPath, Document: &doc}

	sigPath := strings.TrimSuffix(documentPath, DocumentFileExt) + SignatureFileExt
	sig, err := os.ReadFile(sigPath)
	switch {
	case err == nil:
		job.SignaturePath = sigPath
		job.Signature = strings.TrimSpace(string(sig))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read signature file: %w", err)
	}
	return job, nil
}

// Files returns paths of all files the job was loaded from.
func (j *Job) Files() []string {
	var files []string
	if j.DocumentPath != "" {
		files = append(files, j.DocumentPath)
	}
	if j.SignaturePath != "" {
		files = append(files, j.SignaturePath)
	}
	return files
}
