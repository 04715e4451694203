package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	commonhttp "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/http"
)

const DefaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	apiKey     string
	oauthToken string
	baseURL    string
	httpClient *commonhttp.Client
}

type Contact struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"Email"`
	FirstName string `json:"First_Name"`
	LastName  string `json:"Last_Name"`
	Phone     string `json:"Phone,omitempty"`
	Source    string `json:"Lead_Source,omitempty"`
}

// Lookup is a Zoho record reference such as Who_Id.
type Lookup struct {
	ID string `json:"id"`
}

// Task is a record in the Zoho Tasks module.
type Task struct {
	Subject     string  `json:"Subject"`
	Description string  `json:"Description,omitempty"`
	DueDate     string  `json:"Due_Date,omitempty"` // YYYY-MM-DD
	Priority    string  `json:"Priority,omitempty"`
	Status      string  `json:"Status,omitempty"`
	Who         *Lookup `json:"Who_Id,omitempty"`
}

type writeResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func (r writeResponse) firstID(record string) (string, error) {
	if len(r.Data) == 0 {
		return "", fmt.Errorf("no data in %s response", record)
	}
	if r.Data[0].Status != "success" {
		return "", fmt.Errorf("%s creation failed: %s", record, r.Data[0].Message)
	}
	return r.Data[0].Details.ID, nil
}

// NewCRMClientWithBaseURL builds a client for baseURL, or DefaultBaseURL when
// it is empty.
func NewCRMClientWithBaseURL(apiKey, oauthToken, baseURL string) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CRMClient{
		apiKey:     apiKey,
		oauthToken: oauthToken,
		baseURL:    baseURL,
		httpClient: commonhttp.NewClient(30 * time.Second),
	}
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

func (c *CRMClient) CreateContact(ctx context.Context, contact *Contact) (string, error) {
	var resp writeResponse
	payload := map[string]interface{}{"data": []Contact{*contact}}
	if err := c.httpClient.DoJSON(ctx, http.MethodPost, c.baseURL+"/Contacts", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create contact: %w", err)
	}
	return resp.firstID("contact")
}

// SearchContacts finds contacts by email. Zoho answers 204 with no body when
// nothing matches.
func (c *CRMClient) SearchContacts(ctx context.Context, email string) ([]Contact, error) {
	endpoint := fmt.Sprintf("%s/Contacts/search?email=%s", c.baseURL, url.QueryEscape(email))

	var result struct {
		Data []Contact `json:"data"`
	}
	if err := c.httpClient.DoJSON(ctx, http.MethodGet, endpoint, c.headers(), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	return result.Data, nil
}

// CreateTask creates a staff task and returns its record id.
func (c *CRMClient) CreateTask(ctx context.Context, task *Task) (string, error) {
	if task.Status == "" {
		task.Status = "Not Started"
	}
	var resp writeResponse
	payload := map[string]interface{}{"data": []Task{*task}}
	if err := c.httpClient.DoJSON(ctx, http.MethodPost, c.baseURL+"/Tasks", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}
	return resp.firstID("task")
}
