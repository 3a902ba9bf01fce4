package dynamodb

import (
	"encoding/json"
	"fmt"

	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
)

// accountItem is the DynamoDB item structure for an account. Counter fields
// are written once on create and afterwards only by the usage ledger.
type accountItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`

	AccountID         string `dynamodbav:"AccountID"`
	Email             string `dynamodbav:"Email"`
	Username          string `dynamodbav:"Username"`
	PasswordHash      string `dynamodbav:"PasswordHash"`
	DisplayName       string `dynamodbav:"DisplayName"`
	PreferredLanguage string `dynamodbav:"PreferredLanguage"`
	Theme             string `dynamodbav:"Theme"`
	IsAdmin           bool   `dynamodbav:"IsAdmin"`

	FreeUsesCount         int    `dynamodbav:"FreeUsesCount"`
	SubscriptionType      string `dynamodbav:"SubscriptionType"`
	SubscriptionExpiresAt string `dynamodbav:"SubscriptionExpiresAt,omitempty"`
	PaymentStatus         string `dynamodbav:"PaymentStatus"`
	RequestedPlan         string `dynamodbav:"RequestedPlan,omitempty"`
	CustomAPIKey          string `dynamodbav:"CustomAPIKey,omitempty"`

	ImagesProcessed  int `dynamodbav:"ImagesProcessed"`
	ExportsGenerated int `dynamodbav:"ExportsGenerated"`
	ProjectsCreated  int `dynamodbav:"ProjectsCreated"`

	CreatedAt string `dynamodbav:"CreatedAt"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
	LastLogin string `dynamodbav:"LastLogin,omitempty"`
}

// emailLockItem reserves an email address for one account.
type emailLockItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	AccountID  string `dynamodbav:"AccountID"`
}

func toAccountItem(a *entities.Account) accountItem {
	return accountItem{
		PK:                    accountPK(a.ID),
		SK:                    skProfile,
		EntityType:            entityAccount,
		AccountID:             a.ID,
		Email:                 a.Email,
		Username:              a.Username,
		PasswordHash:          a.PasswordHash,
		DisplayName:           a.DisplayName,
		PreferredLanguage:     a.PreferredLanguage,
		Theme:                 a.Theme,
		IsAdmin:               a.IsAdmin,
		FreeUsesCount:         a.FreeUsesCount,
		SubscriptionType:      string(a.SubscriptionType),
		SubscriptionExpiresAt: formatTimePtr(a.SubscriptionExpiresAt),
		PaymentStatus:         string(a.PaymentStatus),
		RequestedPlan:         string(a.RequestedPlan),
		CustomAPIKey:          a.CustomAPIKey,
		ImagesProcessed:       a.ImagesProcessed,
		ExportsGenerated:      a.ExportsGenerated,
		ProjectsCreated:       a.ProjectsCreated,
		CreatedAt:             formatTime(a.CreatedAt),
		UpdatedAt:             formatTime(a.UpdatedAt),
		LastLogin:             formatTimePtr(a.LastLogin),
	}
}

func (i accountItem) toEntity() *entities.Account {
	return &entities.Account{
		ID:                    i.AccountID,
		Email:                 i.Email,
		Username:              i.Username,
		PasswordHash:          i.PasswordHash,
		DisplayName:           i.DisplayName,
		PreferredLanguage:     i.PreferredLanguage,
		Theme:                 i.Theme,
		IsAdmin:               i.IsAdmin,
		FreeUsesCount:         i.FreeUsesCount,
		SubscriptionType:      valueobjects.SubscriptionType(i.SubscriptionType),
		SubscriptionExpiresAt: parseTimePtr(i.SubscriptionExpiresAt),
		PaymentStatus:         valueobjects.PaymentStatus(i.PaymentStatus),
		RequestedPlan:         valueobjects.SubscriptionType(i.RequestedPlan),
		CustomAPIKey:          i.CustomAPIKey,
		ImagesProcessed:       i.ImagesProcessed,
		ExportsGenerated:      i.ExportsGenerated,
		ProjectsCreated:       i.ProjectsCreated,
		CreatedAt:             parseTime(i.CreatedAt),
		UpdatedAt:             parseTime(i.UpdatedAt),
		LastLogin:             parseTimePtr(i.LastLogin),
	}
}

// projectItem is the DynamoDB item structure for a project
type projectItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`           // OWNER#<owner>
	GSI1SK     string `dynamodbav:"GSI1SK"`           // PROJECT#<updated>
	GSI2PK     string `dynamodbav:"GSI2PK,omitempty"` // SHARE#<token>, only while shared
	GSI2SK     string `dynamodbav:"GSI2SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`

	ProjectID   string `dynamodbav:"ProjectID"`
	OwnerID     string `dynamodbav:"OwnerID"`
	Title       string `dynamodbav:"Title"`
	Description string `dynamodbav:"Description"`
	Status      string `dynamodbav:"Status"`
	ShareToken  string `dynamodbav:"ShareToken,omitempty"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
}

func toProjectItem(p *entities.Project) projectItem {
	item := projectItem{
		PK:          projectPK(p.ID),
		SK:          skMetadata,
		GSI1PK:      ownerKey(p.OwnerID),
		GSI1SK:      "PROJECT#" + formatTime(p.UpdatedAt) + "#" + p.ID,
		EntityType:  entityProject,
		ProjectID:   p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		ShareToken:  p.ShareToken,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
	if p.ShareToken != "" {
		item.GSI2PK = shareKey(p.ShareToken)
		item.GSI2SK = entityProject
	}
	return item
}

func (i projectItem) toEntity() *entities.Project {
	return &entities.Project{
		ID:          i.ProjectID,
		OwnerID:     i.OwnerID,
		Title:       i.Title,
		Description: i.Description,
		Status:      entities.ProjectStatus(i.Status),
		ShareToken:  i.ShareToken,
		CreatedAt:   parseTime(i.CreatedAt),
		UpdatedAt:   parseTime(i.UpdatedAt),
	}
}

// whiteboardItem is the DynamoDB item structure for a whiteboard
type whiteboardItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"` // PROJECT#<pid>
	GSI1SK     string `dynamodbav:"GSI1SK"` // WHITEBOARD#<created>#<id>
	GSI2PK     string `dynamodbav:"GSI2PK"` // OWNER#<owner>
	GSI2SK     string `dynamodbav:"GSI2SK"`
	EntityType string `dynamodbav:"EntityType"`

	WhiteboardID     string `dynamodbav:"WhiteboardID"`
	ProjectID        string `dynamodbav:"ProjectID"`
	OwnerID          string `dynamodbav:"OwnerID"`
	OriginalFilename string `dynamodbav:"OriginalFilename"`
	ImagePath        string `dynamodbav:"ImagePath"`
	MimeType         string `dynamodbav:"MimeType"`
	FileSize         int64  `dynamodbav:"FileSize"`

	ProcessingStatus  string  `dynamodbav:"ProcessingStatus"`
	Progress          int     `dynamodbav:"Progress"`
	ExtractedText     string  `dynamodbav:"ExtractedText,omitempty"`
	StructuredContent string  `dynamodbav:"StructuredContent,omitempty"`
	ConfidenceScore   float64 `dynamodbav:"ConfidenceScore"`
	ErrorMessage      string  `dynamodbav:"ErrorMessage,omitempty"`

	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
	ProcessedAt string `dynamodbav:"ProcessedAt,omitempty"`
}

func toWhiteboardItem(w *entities.Whiteboard) whiteboardItem {
	created := formatTime(w.CreatedAt)
	return whiteboardItem{
		PK:                whiteboardPK(w.ID),
		SK:                skMetadata,
		GSI1PK:            projectPK(w.ProjectID),
		GSI1SK:            "WHITEBOARD#" + created + "#" + w.ID,
		GSI2PK:            ownerKey(w.OwnerID),
		GSI2SK:            "WHITEBOARD#" + created,
		EntityType:        entityWhiteboard,
		WhiteboardID:      w.ID,
		ProjectID:         w.ProjectID,
		OwnerID:           w.OwnerID,
		OriginalFilename:  w.OriginalFilename,
		ImagePath:         w.ImagePath,
		MimeType:          w.MimeType,
		FileSize:          w.FileSize,
		ProcessingStatus:  string(w.ProcessingStatus),
		Progress:          w.Progress,
		ExtractedText:     w.ExtractedText,
		StructuredContent: string(w.StructuredContent),
		ConfidenceScore:   w.ConfidenceScore,
		ErrorMessage:      w.ErrorMessage,
		CreatedAt:         created,
		UpdatedAt:         formatTime(w.UpdatedAt),
		ProcessedAt:       formatTimePtr(w.ProcessedAt),
	}
}

func (i whiteboardItem) toEntity() *entities.Whiteboard {
	w := &entities.Whiteboard{
		ID:               i.WhiteboardID,
		ProjectID:        i.ProjectID,
		OwnerID:          i.OwnerID,
		OriginalFilename: i.OriginalFilename,
		ImagePath:        i.ImagePath,
		MimeType:         i.MimeType,
		FileSize:         i.FileSize,
		ProcessingStatus: entities.ProcessingStatus(i.ProcessingStatus),
		Progress:         i.Progress,
		ExtractedText:    i.ExtractedText,
		ConfidenceScore:  i.ConfidenceScore,
		ErrorMessage:     i.ErrorMessage,
		CreatedAt:        parseTime(i.CreatedAt),
		UpdatedAt:        parseTime(i.UpdatedAt),
		ProcessedAt:      parseTimePtr(i.ProcessedAt),
	}
	if i.StructuredContent != "" {
		w.StructuredContent = json.RawMessage(i.StructuredContent)
	}
	return w
}

// exportItem is the DynamoDB item structure for an export record
type exportItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"` // PROJECT#<pid>
	GSI1SK     string `dynamodbav:"GSI1SK"` // EXPORT#<created>#<id>
	GSI2PK     string `dynamodbav:"GSI2PK"` // OWNER#<owner>
	GSI2SK     string `dynamodbav:"GSI2SK"`
	EntityType string `dynamodbav:"EntityType"`

	ExportID       string `dynamodbav:"ExportID"`
	ProjectID      string `dynamodbav:"ProjectID"`
	OwnerID        string `dynamodbav:"OwnerID"`
	Format         string `dynamodbav:"Format"`
	Options        string `dynamodbav:"Options"`
	Status         string `dynamodbav:"Status"`
	Filename       string `dynamodbav:"Filename"`
	FilePath       string `dynamodbav:"FilePath,omitempty"`
	FileSize       int64  `dynamodbav:"FileSize"`
	DownloadCount  int    `dynamodbav:"DownloadCount"`
	LastDownloaded string `dynamodbav:"LastDownloaded,omitempty"`
	ErrorMessage   string `dynamodbav:"ErrorMessage,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	CompletedAt    string `dynamodbav:"CompletedAt,omitempty"`
}

func toExportItem(e *entities.Export) (exportItem, error) {
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return exportItem{}, fmt.Errorf("failed to marshal export options: %w", err)
	}
	created := formatTime(e.CreatedAt)
	return exportItem{
		PK:             exportPK(e.ID),
		SK:             skMetadata,
		GSI1PK:         projectPK(e.ProjectID),
		GSI1SK:         "EXPORT#" + created + "#" + e.ID,
		GSI2PK:         ownerKey(e.OwnerID),
		GSI2SK:         "EXPORT#" + created,
		EntityType:     entityExport,
		ExportID:       e.ID,
		ProjectID:      e.ProjectID,
		OwnerID:        e.OwnerID,
		Format:         string(e.Format),
		Options:        string(opts),
		Status:         string(e.Status),
		Filename:       e.Filename,
		FilePath:       e.FilePath,
		FileSize:       e.FileSize,
		DownloadCount:  e.DownloadCount,
		LastDownloaded: formatTimePtr(e.LastDownloaded),
		ErrorMessage:   e.ErrorMessage,
		CreatedAt:      created,
		CompletedAt:    formatTimePtr(e.CompletedAt),
	}, nil
}

func (i exportItem) toEntity() (*entities.Export, error) {
	format := valueobjects.ExportFormat(i.Format)
	opts, err := valueobjects.ParseExportOptions(format, []byte(i.Options))
	if err != nil {
		return nil, fmt.Errorf("export %s has unreadable options: %w", i.ExportID, err)
	}
	return &entities.Export{
		ID:             i.ExportID,
		ProjectID:      i.ProjectID,
		OwnerID:        i.OwnerID,
		Format:         format,
		Options:        opts,
		Status:         valueobjects.ExportStatus(i.Status),
		Filename:       i.Filename,
		FilePath:       i.FilePath,
		FileSize:       i.FileSize,
		DownloadCount:  i.DownloadCount,
		LastDownloaded: parseTimePtr(i.LastDownloaded),
		ErrorMessage:   i.ErrorMessage,
		CreatedAt:      parseTime(i.CreatedAt),
		CompletedAt:    parseTimePtr(i.CompletedAt),
	}, nil
}
