package reviewapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexsuite/review-cli/internal/model"
)

func TestUploadContract_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reviews/upload", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(16<<20))
		assert.Equal(t, "租赁合同", r.FormValue("title"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "contract.docx", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.UploadResponse{
			Success:    true,
			Message:    "上传成功",
			ContractID: "c1",
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	resp, err := client.UploadContract(context.Background(),
		strings.NewReader("fake docx bytes"), "contract.docx", "租赁合同")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "c1", resp.ContractID)
}

func TestUploadContract_ServerFailureFlag(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.UploadResponse{
			Success: false,
			Message: "文件解析失败",
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	resp, err := client.UploadContract(context.Background(),
		strings.NewReader("x"), "contract.docx", "")

	// A success=false payload is a valid response; the controller decides.
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "文件解析失败", resp.Message)
}

func TestStartReview_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reviews/c1/start", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Review{
			ID:         "r1",
			ContractID: "c1",
			Status:     model.ReviewPending,
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	review, err := client.StartReview(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, "r1", review.ID)
	assert.Equal(t, model.ReviewPending, review.Status)
}

func TestGetReview_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"review not found"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetReview(context.Background(), "missing")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "review not found", apiErr.Message)
}

func TestGetReview_MalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetReview(context.Background(), "r1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestListContracts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/reviews/contracts", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]model.Contract{
			{ID: "c1", Title: "租赁合同", Status: model.ContractCompleted},
			{ID: "c2", Title: "采购合同", Status: model.ContractReviewing},
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	contracts, err := client.ListContracts(context.Background())

	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, "租赁合同", contracts[0].Title)
	assert.Equal(t, model.ContractReviewing, contracts[1].Status)
}

func TestDownloadReviewedDocument_Binary(t *testing.T) {
	t.Parallel()

	payload := []byte{0x50, 0x4b, 0x03, 0x04, 0x00} // zip magic
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reviews/r1/download", r.URL.Path)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Write(payload)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	data, err := client.DownloadReviewedDocument(context.Background(), "r1")

	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadReport_NotReady(t *testing.T) {
	t.Parallel()

	// Downloading before completion is a caller error surfaced by the server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"审查尚未完成"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.DownloadReport(context.Background(), "r1")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "审查尚未完成", apiErr.Message)
}
