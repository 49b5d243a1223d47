package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/domicile785-droid/Cycle-World/internal/blobstore"
	"github.com/domicile785-droid/Cycle-World/internal/catalog"
	"github.com/domicile785-droid/Cycle-World/internal/order"
	"github.com/domicile785-droid/Cycle-World/internal/payment"
	"github.com/domicile785-droid/Cycle-World/internal/verification"
)

const maxUploadBytes = 5 << 20 // per file

type Server struct {
	orders   *order.Service
	catalog  *catalog.Service
	payments *payment.Store
	workflow *verification.Workflow
	blobs    blobstore.Gateway

	proofBucket string
	imageBucket string
	adminToken  string

	logger *slog.Logger
	mux    *http.ServeMux
}

type Deps struct {
	Orders   *order.Service
	Catalog  *catalog.Service
	Payments *payment.Store
	Workflow *verification.Workflow
	Blobs    blobstore.Gateway

	ProofBucket string
	ImageBucket string
	AdminToken  string

	Logger *slog.Logger
}

func NewServer(d Deps) *Server {
	s := &Server{
		orders:      d.Orders,
		catalog:     d.Catalog,
		payments:    d.Payments,
		workflow:    d.Workflow,
		blobs:       d.Blobs,
		proofBucket: d.ProofBucket,
		imageBucket: d.ImageBucket,
		adminToken:  d.AdminToken,
		logger:      d.Logger,
		mux:         http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /orders", s.checkout)
	s.mux.HandleFunc("GET /orders", s.listOrders)
	s.mux.HandleFunc("GET /orders/{orderID}", s.getOrder)
	s.mux.HandleFunc("POST /orders/{orderID}/proof", s.uploadProof)

	s.mux.HandleFunc("GET /products", s.listProducts)
	s.mux.HandleFunc("GET /products/{productID}", s.getProduct)

	s.mux.HandleFunc("POST /admin/products", s.requireAdmin(s.createProduct))
	s.mux.HandleFunc("PUT /admin/products/{productID}", s.requireAdmin(s.updateProduct))
	s.mux.HandleFunc("DELETE /admin/products/{productID}", s.requireAdmin(s.deleteProduct))
	s.mux.HandleFunc("GET /admin/orders", s.requireAdmin(s.listAllOrders))
	s.mux.HandleFunc("POST /admin/orders/{orderID}/action", s.requireAdmin(s.orderAction))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// HandleFunc lets the app register extra routes (the websocket endpoint).
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" || r.Header.Get("X-Admin-Token") != s.adminToken {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next(w, r)
	}
}

// orderAction applies the administrator's approve/reject decision. This is
// the HTTP face of the verification workflow; the error mapping is part of
// its contract: unknown order 404, already decided 409, partial store
// failure 500.
func (s *Server) orderAction(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	decision, err := verification.ParseDecision(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.workflow.Process(r.Context(), orderID, decision)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, verification.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, "order already processed")
		default:
			s.logger.Error("order action", "order_id", orderID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in order.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.orders.Checkout(r.Context(), userID, in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := s.orders.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Error("get order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// uploadProof stores the proof-of-payment screenshot and attaches its URL to
// the order's payment record. The order itself is untouched either way.
func (s *Server) uploadProof(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if _, err := s.orders.Get(r.Context(), userID, orderID); err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Error("get order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	data, header, err := readUpload(r, "screenshot")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	object := fmt.Sprintf("pay_%s_%d%s", orderID, time.Now().UnixMilli(), path.Ext(header.Filename))
	url, err := s.blobs.Upload(r.Context(), s.proofBucket, object, data, header.Header.Get("Content-Type"))
	if err != nil {
		s.logger.Error("proof upload", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	if err := s.payments.AttachProof(r.Context(), orderID, url); err != nil {
		s.logger.Error("attach proof", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"proof_url": url})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("list products", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := s.catalog.Get(r.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		s.logger.Error("get product", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	in, urls, err := s.productForm(r, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.catalog.Create(r.Context(), in, urls)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var existing []string
	if raw := r.FormValue("existing_images"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			writeError(w, http.StatusBadRequest, "invalid existing_images")
			return
		}
	}

	in, urls, err := s.productForm(r, existing)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.catalog.Update(r.Context(), productID, in, urls)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := s.catalog.Delete(r.Context(), productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		s.logger.Error("delete product", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list all orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type row struct {
		order.Order
		Payment *payment.Payment `json:"payment,omitempty"`
	}
	rows := make([]row, 0, len(orders))
	for _, o := range orders {
		entry := row{Order: o}
		if pay, err := s.payments.GetByOrder(r.Context(), uuid.MustParse(o.ID)); err == nil {
			entry.Payment = pay
		}
		rows = append(rows, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": rows})
}

// productForm parses the multipart product form and uploads any attached
// images, returning the combined image URL list.
func (s *Server) productForm(r *http.Request, existingURLs []string) (catalog.ProductInput, []string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes * 4); err != nil {
		return catalog.ProductInput{}, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	price, err := strconv.ParseInt(r.FormValue("price"), 10, 64)
	if err != nil {
		return catalog.ProductInput{}, nil, fmt.Errorf("invalid price")
	}
	stock, err := strconv.ParseInt(r.FormValue("stock"), 10, 64)
	if err != nil {
		return catalog.ProductInput{}, nil, fmt.Errorf("invalid stock")
	}

	in := catalog.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       price,
		Stock:       stock,
	}

	urls := append([]string(nil), existingURLs...)
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			data, err := readFileHeader(header)
			if err != nil {
				return catalog.ProductInput{}, nil, err
			}
			object := fmt.Sprintf("%s%s", uuid.New(), path.Ext(header.Filename))
			url, err := s.blobs.Upload(r.Context(), s.imageBucket, object, data, header.Header.Get("Content-Type"))
			if err != nil {
				return catalog.ProductInput{}, nil, fmt.Errorf("image upload failed: %w", err)
			}
			urls = append(urls, url)
		}
	}

	return in, urls, nil
}

func readUpload(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("missing %s file", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	return data, header, nil
}

func readFileHeader(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxUploadBytes))
}

func (s *Server) userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	value := r.Header.Get("X-User-ID")
	if value == "" {
		return uuid.UUID{}, errors.New("missing X-User-ID header")
	}
	return uuid.Parse(value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
