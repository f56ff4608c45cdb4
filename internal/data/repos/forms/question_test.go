package forms

import (
	"context"
	"testing"

	"github.com/yungbote/carecall-backend/internal/data/repos/testutil"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
)

func TestQuestionRepoNextOrderAndCascade(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	doc := testutil.SeedDoctor(t, ctx, tx, "Dr. Quinn")
	pat := testutil.SeedPatient(t, ctx, tx, doc.ID, "Sully", "")
	empty, _ := testutil.SeedForm(t, ctx, tx, doc.ID, pat.ID, nil)
	form, qs := testutil.SeedForm(t, ctx, tx, doc.ID, pat.ID, nil, "Q1", "Q2", "Q3")

	repo := NewQuestionRepo(db, log)
	if n, err := repo.NextOrder(dbc, empty.ID); err != nil || n != 0 {
		t.Fatalf("NextOrder empty: want=0 got=%d err=%v", n, err)
	}
	if n, err := repo.NextOrder(dbc, form.ID); err != nil || n != 3 {
		t.Fatalf("NextOrder: want=3 got=%d err=%v", n, err)
	}

	answers := NewAnswerRepo(db, log)
	if _, err := answers.ReplaceForForm(dbc, form.ID, []*types.Answer{
		{QuestionID: qs[1].ID, AnswerText: testutil.PtrString("a2")},
		{QuestionID: qs[2].ID, AnswerText: testutil.PtrString("a3")},
	}); err != nil {
		t.Fatalf("ReplaceForForm: %v", err)
	}
	if err := repo.DeleteCascade(dbc, qs[1].ID); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}

	left, _ := answers.ListByForm(dbc, form.ID)
	if len(left) != 1 || left[0].QuestionID != qs[2].ID {
		t.Fatalf("answers after cascade: %+v", left)
	}
	listed, _ := repo.ListByForm(dbc, form.ID)
	if len(listed) != 2 || listed[0].QuestionOrder != 0 || listed[1].QuestionOrder != 2 {
		t.Fatalf("ListByForm order: %+v", listed)
	}
}

func TestAnswerRepoReplaceIsTotal(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	doc := testutil.SeedDoctor(t, ctx, tx, "Dr. Strange")
	pat := testutil.SeedPatient(t, ctx, tx, doc.ID, "Wong", "")
	form, qs := testutil.SeedForm(t, ctx, tx, doc.ID, pat.ID, nil, "Q1", "Q2")

	repo := NewAnswerRepo(db, testutil.Logger(t))
	if _, err := repo.ReplaceForForm(dbc, form.ID, []*types.Answer{
		{QuestionID: qs[0].ID, AnswerText: testutil.PtrString("first")},
		{QuestionID: qs[1].ID, AnswerText: testutil.PtrString("second")},
	}); err != nil {
		t.Fatalf("ReplaceForForm: %v", err)
	}
	if _, err := repo.ReplaceForForm(dbc, form.ID, []*types.Answer{
		{QuestionID: qs[0].ID, AnswerText: nil},
	}); err != nil {
		t.Fatalf("ReplaceForForm again: %v", err)
	}
	got, _ := repo.ListByForm(dbc, form.ID)
	if len(got) != 1 || got[0].AnswerText != nil {
		t.Fatalf("after replace: %+v", got)
	}
}
