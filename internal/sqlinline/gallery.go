package sqlinline

const QInsertGalleryImage = `--sql d7699a1c-8740-4ab9-843f-0b6598a86d8e
insert into gallery (id, url, title, created_at, clerk_user_id)
values (gen_random_uuid(), $1::text, $2::text, now(), $3::text)
returning id::text, url, title, created_at, clerk_user_id;
`

const QListGalleryByOwner = `--sql 9a38d445-3c4e-47fb-8a36-c78387d941c5
select id::text, url, title, created_at, clerk_user_id
from gallery
where clerk_user_id = $1::text
order by created_at desc, id desc;
`

const QGetGalleryImageForOwner = `--sql 3b0f6c52-8e1d-4a7f-9c25-d4e6a1b7f093
select id::text, url, title, created_at, clerk_user_id
from gallery
where id = $1::uuid
  and clerk_user_id = $2::text;
`

// QDeleteGalleryImageForOwner removes a row only when the caller owns it, in
// one statement.
const QDeleteGalleryImageForOwner = `--sql f4e96cec-c2eb-40b7-9736-0477d78c0500
delete from gallery
where id = $1::uuid
  and clerk_user_id = $2::text;
`
